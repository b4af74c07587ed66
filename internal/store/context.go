// internal/store/context.go
package store

import "context"

type txKey struct{}

// ContextWithTx carries an open transaction to collaborators that are called
// in the middle of it.
func ContextWithTx(ctx context.Context, tx Store) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// FromContext returns the transaction carried by ctx, or fallback.
func FromContext(ctx context.Context, fallback Store) Store {
	if tx, ok := ctx.Value(txKey{}).(Store); ok && tx != nil {
		return tx
	}
	return fallback
}
