package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arkabooks/arkabooks/internal/shared"
)

// Registry manages the chart of accounts. Child codes are allocated
// sequentially under a group prefix while holding the group row lock, so
// concurrent creations under one category cannot collide.
type Registry struct {
	repo      RepositoryPort
	activity  ActivityPort
	wellKnown *WellKnownAccounts
	now       func() time.Time
}

// NewRegistry constructs the account registry.
func NewRegistry(repo RepositoryPort, activity ActivityPort, wellKnown *WellKnownAccounts) *Registry {
	return &Registry{repo: repo, activity: activity, wellKnown: wellKnown, now: time.Now}
}

// WithNow overrides the clock for testing.
func (r *Registry) WithNow(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// CreateAccount allocates the next child code under the group and inserts
// the account. Category and normal side are inherited from the group.
func (r *Registry) CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error) {
	if input.GroupID == 0 {
		return Account{}, ErrGroupNotFound
	}
	if input.Name == "" {
		return Account{}, errors.New("ledger: account name required")
	}
	account, err := r.createOnce(ctx, input)
	if errors.Is(err, ErrDuplicateCode) {
		// Lost the allocation race despite the group lock (e.g. a manually
		// seeded code); re-read max and try once more.
		account, err = r.createOnce(ctx, input)
		if errors.Is(err, ErrDuplicateCode) {
			return Account{}, ErrSequenceConflict
		}
	}
	if err != nil {
		return Account{}, err
	}
	if r.activity != nil {
		_ = r.activity.Record(ctx, shared.ActivityLog{
			ActorID:  0,
			Action:   "account.create",
			Entity:   "account",
			EntityID: fmt.Sprintf("%d", account.ID),
			Meta:     map[string]any{"code": account.Code, "name": account.Name},
			At:       r.now(),
		})
	}
	return account, nil
}

func (r *Registry) createOnce(ctx context.Context, input CreateAccountInput) (Account, error) {
	var account Account
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		group, err := tx.GetGroupForUpdate(ctx, input.GroupID)
		if err != nil {
			return err
		}
		if !ValidCategory(group.Category) {
			return ErrInvalidCategory
		}
		suffix, err := tx.MaxChildSuffix(ctx, group.ID)
		if err != nil {
			return err
		}
		account, err = tx.InsertAccount(ctx, Account{
			GroupID:        group.ID,
			Code:           ChildCode(group.Code, suffix+1),
			Name:           input.Name,
			Category:       group.Category,
			NormalSide:     group.NormalSide,
			OpeningBalance: input.OpeningBalance,
			IsCashBank:     input.IsCashBank,
			WarehouseID:    input.WarehouseID,
		})
		return err
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// NextChildCode previews the next code under a group. The preview is only
// collision-free when consumed inside the same transaction that inserts the
// account; CreateAccount does exactly that.
func (r *Registry) NextChildCode(ctx context.Context, groupID int64) (string, error) {
	var code string
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		group, err := tx.GetGroupForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		suffix, err := tx.MaxChildSuffix(ctx, group.ID)
		if err != nil {
			return err
		}
		code = ChildCode(group.Code, suffix+1)
		return nil
	})
	return code, err
}

// UpdateAccount edits account metadata. The normal side is immutable once
// postings exist, and the equity plug's balance is engine-owned.
func (r *Registry) UpdateAccount(ctx context.Context, account Account) error {
	if account.ID == 0 {
		return ErrAccountNotFound
	}
	return r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetAccount(ctx, account.ID)
		if err != nil {
			return err
		}
		if current.Locked {
			return ErrAccountLocked
		}
		if account.NormalSide != current.NormalSide {
			posted, err := tx.CountAccountPostings(ctx, account.ID)
			if err != nil {
				return err
			}
			if posted > 0 {
				return ErrNormalSideImmutable
			}
		}
		if r.wellKnown.IsPlug(account.ID) && account.OpeningBalance != current.OpeningBalance {
			return ErrPlugAccountManaged
		}
		return tx.UpdateAccount(ctx, account)
	})
}

// LockAccount marks the account as structural-change protected. Locked
// accounts still accept postings.
func (r *Registry) LockAccount(ctx context.Context, id int64) error {
	return r.setLocked(ctx, id, true)
}

// UnlockAccount clears the protection flag.
func (r *Registry) UnlockAccount(ctx context.Context, id int64) error {
	return r.setLocked(ctx, id, false)
}

func (r *Registry) setLocked(ctx context.Context, id int64, locked bool) error {
	return r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetAccount(ctx, id); err != nil {
			return err
		}
		return tx.SetAccountLocked(ctx, id, locked)
	})
}

// DeleteAccount removes an account that is unlocked and unreferenced.
func (r *Registry) DeleteAccount(ctx context.Context, id int64) error {
	return r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if account.Locked {
			return ErrAccountLocked
		}
		refs, err := tx.CountAccountRefs(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return ErrAccountInUse
		}
		return tx.DeleteAccount(ctx, id)
	})
}

// GetAccount fetches one account.
func (r *Registry) GetAccount(ctx context.Context, id int64) (Account, error) {
	var account Account
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.GetAccount(ctx, id)
		return err
	})
	return account, err
}

// ListAccounts returns the chart of accounts ordered by code.
func (r *Registry) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx)
		return err
	})
	return accounts, err
}
