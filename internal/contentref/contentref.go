// internal/contentref/contentref.go
package contentref

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ipfs/go-cid"
)

type Kind string

const (
	KindCID    Kind = "cid"
	KindS3     Kind = "s3"
	KindHTTP   Kind = "http"
	KindOpaque Kind = "opaque"
)

var ErrEmpty = errors.New("contentref: empty reference")

// Ref is a classified content reference. The service never dereferences
// content itself; it only stores and hands out references.
type Ref struct {
	Kind       Kind
	Normalized string
	CID        cid.Cid
	Bucket     string
	Key        string
}

func (r Ref) String() string {
	return r.Normalized
}

// Parse classifies raw. Bare CIDs and ipfs:// URIs are normalized to the
// canonical CID string; anything unrecognized is kept as an opaque token.
func Parse(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, ErrEmpty
	}

	switch {
	case strings.HasPrefix(raw, "ipfs://"):
		return parseCID(strings.TrimPrefix(raw, "ipfs://"))
	case strings.HasPrefix(raw, "/ipfs/"):
		return parseCID(strings.TrimPrefix(raw, "/ipfs/"))
	case strings.HasPrefix(raw, "s3://"):
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || strings.Trim(u.Path, "/") == "" {
			return Ref{}, fmt.Errorf("contentref: invalid s3 reference %q", raw)
		}
		return Ref{
			Kind:       KindS3,
			Normalized: raw,
			Bucket:     u.Host,
			Key:        strings.TrimPrefix(u.Path, "/"),
		}, nil
	case strings.HasPrefix(raw, "https://"), strings.HasPrefix(raw, "http://"):
		if _, err := url.ParseRequestURI(raw); err != nil {
			return Ref{}, fmt.Errorf("contentref: invalid url %q: %w", raw, err)
		}
		return Ref{Kind: KindHTTP, Normalized: raw}, nil
	}

	if ref, err := parseCID(raw); err == nil {
		return ref, nil
	}
	return Ref{Kind: KindOpaque, Normalized: raw}, nil
}

func parseCID(s string) (Ref, error) {
	s = strings.SplitN(s, "/", 2)[0]
	c, err := cid.Decode(s)
	if err != nil {
		return Ref{}, fmt.Errorf("contentref: invalid cid %q: %w", s, err)
	}
	return Ref{Kind: KindCID, Normalized: c.String(), CID: c}, nil
}

// Describe returns a short human label such as "cidv0/dag-pb".
func (r Ref) Describe() string {
	if r.Kind != KindCID {
		return string(r.Kind)
	}
	return fmt.Sprintf("cidv%d/%s", r.CID.Version(), codecName(r.CID.Prefix().Codec))
}

func codecName(code uint64) string {
	switch code {
	case cid.DagProtobuf:
		return "dag-pb"
	case cid.Raw:
		return "raw"
	case cid.DagCBOR:
		return "dag-cbor"
	case cid.DagJSON:
		return "dag-json"
	default:
		return fmt.Sprintf("0x%x", code)
	}
}
