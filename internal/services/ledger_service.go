// internal/services/ledger_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/store"
)

// LedgerService is a fungible-token ledger with a supply fixed at genesis.
// The sum of all balances always equals the total supply.
type LedgerService struct {
	store    store.Store
	notifier *NotificationService
}

type TransferRequest struct {
	To     models.AccountID `json:"to" validate:"required"`
	Amount models.Amount    `json:"amount"`
}

type ApproveRequest struct {
	Spender models.AccountID `json:"spender" validate:"required"`
	Amount  models.Amount    `json:"amount"`
}

type TransferFromRequest struct {
	From   models.AccountID `json:"from" validate:"required"`
	To     models.AccountID `json:"to" validate:"required"`
	Amount models.Amount    `json:"amount"`
}

func NewLedgerService(st store.Store, notifier *NotificationService) *LedgerService {
	return &LedgerService{
		store:    st,
		notifier: notifier,
	}
}

// Genesis mints supply to treasury. Calling it again with the same
// parameters is a no-op; any other second call is a conflict.
func (s *LedgerService) Genesis(ctx context.Context, treasury models.AccountID, supply models.Amount) (*models.LedgerSupply, error) {
	var result *models.LedgerSupply
	err := s.store.Tx(ctx, func(tx store.Store) error {
		existing, err := tx.GetSupply(ctx)
		if err == nil {
			if existing.Treasury != treasury || !existing.TotalSupply.Equal(supply) {
				return newError(KindConflict, "ledger already initialized with different parameters", nil)
			}
			result = existing
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to read supply: %w", err)
		}

		row := &models.LedgerSupply{TotalSupply: supply, Treasury: treasury}
		if err := tx.SaveSupply(ctx, row); err != nil {
			return fmt.Errorf("failed to save supply: %w", err)
		}
		if err := tx.SetBalance(ctx, treasury, supply); err != nil {
			return fmt.Errorf("failed to mint supply: %w", err)
		}
		result = row
		return s.notifier.Emit(ctx, tx, nil, models.EventLedgerTransfer, models.JSONB{
			"from":  nil,
			"to":    treasury.String(),
			"value": supply.String(),
		})
	})
	return result, err
}

func (s *LedgerService) Supply(ctx context.Context) (*models.LedgerSupply, error) {
	supply, err := s.store.GetSupply(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindNotFound, "ledger not initialized", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read supply: %w", err)
	}
	return supply, nil
}

func (s *LedgerService) TotalSupply(ctx context.Context) (models.Amount, error) {
	supply, err := s.Supply(ctx)
	if err != nil {
		return models.Amount{}, err
	}
	return supply.TotalSupply, nil
}

func (s *LedgerService) BalanceOf(ctx context.Context, account models.AccountID) (models.Amount, error) {
	return s.store.GetBalance(ctx, account)
}

func (s *LedgerService) Allowance(ctx context.Context, owner, spender models.AccountID) (models.Amount, error) {
	return s.store.GetAllowance(ctx, owner, spender)
}

func (s *LedgerService) Transfer(ctx context.Context, from, to models.AccountID, amount models.Amount) error {
	return s.store.Tx(ctx, func(tx store.Store) error {
		return s.TransferTx(ctx, tx, from, to, amount)
	})
}

// TransferTx moves amount inside an existing transaction.
func (s *LedgerService) TransferTx(ctx context.Context, tx store.Store, from, to models.AccountID, amount models.Amount) error {
	if err := s.move(ctx, tx, from, to, amount); err != nil {
		return err
	}
	return s.notifier.Emit(ctx, tx, nil, models.EventLedgerTransfer, models.JSONB{
		"from":  from.String(),
		"to":    to.String(),
		"value": amount.String(),
	})
}

// move debits from and credits to after checking the balance.
func (s *LedgerService) move(ctx context.Context, tx store.Store, from, to models.AccountID, amount models.Amount) error {
	fromBalance, err := tx.GetBalance(ctx, from)
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}
	if fromBalance.LessThan(amount) {
		return newError(KindInsufficientBalance, fmt.Sprintf("balance %s is below %s", fromBalance, amount), nil)
	}
	if from == to {
		return nil
	}

	toBalance, err := tx.GetBalance(ctx, to)
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}
	debited, err := fromBalance.Sub(amount)
	if err != nil {
		return newError(KindInsufficientBalance, "", err)
	}
	credited, err := toBalance.Add(amount)
	if err != nil {
		return fmt.Errorf("credit overflow: %w", err)
	}

	if err := tx.SetBalance(ctx, from, debited); err != nil {
		return fmt.Errorf("failed to debit %s: %w", from, err)
	}
	if err := tx.SetBalance(ctx, to, credited); err != nil {
		return fmt.Errorf("failed to credit %s: %w", to, err)
	}
	return nil
}

// Approve sets the allowance absolutely; it does not add to the previous one.
func (s *LedgerService) Approve(ctx context.Context, owner, spender models.AccountID, amount models.Amount) error {
	return s.store.Tx(ctx, func(tx store.Store) error {
		if err := tx.SetAllowance(ctx, owner, spender, amount); err != nil {
			return fmt.Errorf("failed to set allowance: %w", err)
		}
		return s.notifier.Emit(ctx, tx, nil, models.EventLedgerApproval, models.JSONB{
			"owner":   owner.String(),
			"spender": spender.String(),
			"value":   amount.String(),
		})
	})
}

// TransferFrom moves amount out of from on behalf of spender. Both the
// allowance and the balance are checked before anything changes.
func (s *LedgerService) TransferFrom(ctx context.Context, from, spender, to models.AccountID, amount models.Amount) error {
	return s.store.Tx(ctx, func(tx store.Store) error {
		allowance, err := tx.GetAllowance(ctx, from, spender)
		if err != nil {
			return fmt.Errorf("failed to read allowance: %w", err)
		}
		if allowance.LessThan(amount) {
			return newError(KindInsufficientAllowance, fmt.Sprintf("allowance %s is below %s", allowance, amount), nil)
		}

		if err := s.TransferTx(ctx, tx, from, to, amount); err != nil {
			return err
		}

		remaining, err := allowance.Sub(amount)
		if err != nil {
			return newError(KindInsufficientAllowance, "", err)
		}
		if err := tx.SetAllowance(ctx, from, spender, remaining); err != nil {
			return fmt.Errorf("failed to update allowance: %w", err)
		}
		return nil
	})
}

// CheckConservation verifies that balances add up to the total supply.
func (s *LedgerService) CheckConservation(ctx context.Context) error {
	supply, err := s.TotalSupply(ctx)
	if err != nil {
		return err
	}
	balances, err := s.store.ListBalances(ctx)
	if err != nil {
		return fmt.Errorf("failed to list balances: %w", err)
	}
	total := models.Amount{}
	for _, b := range balances {
		if total, err = total.Add(b.Balance); err != nil {
			return fmt.Errorf("balances overflow: %w", err)
		}
	}
	if !total.Equal(supply) {
		return fmt.Errorf("ledger out of balance: balances %s, supply %s", total, supply)
	}
	return nil
}
