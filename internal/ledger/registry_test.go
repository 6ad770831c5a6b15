package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRegistry(repo *memoryRepo) (*Registry, *recordingActivity) {
	activity := &recordingActivity{}
	reg := NewRegistry(repo, activity, testWellKnown(5))
	reg.WithNow(fixedClock)
	return reg, activity
}

func seedAssetGroup(repo *memoryRepo) AccountGroup {
	return repo.seedGroup(AccountGroup{
		ID:         1,
		Code:       "10100",
		Name:       "Current Assets",
		Category:   CategoryAsset,
		NormalSide: NormalDebit,
	})
}

func TestCreateAccountAllocatesSequentialCodes(t *testing.T) {
	repo := newMemoryRepo()
	reg, activity := newTestRegistry(repo)
	group := seedAssetGroup(repo)

	first, err := reg.CreateAccount(context.Background(), CreateAccountInput{GroupID: group.ID, Name: "Cash"})
	require.NoError(t, err)
	require.Equal(t, "10100-001", first.Code)
	require.Equal(t, CategoryAsset, first.Category)
	require.Equal(t, NormalDebit, first.NormalSide)

	second, err := reg.CreateAccount(context.Background(), CreateAccountInput{GroupID: group.ID, Name: "Petty Cash"})
	require.NoError(t, err)
	require.Equal(t, "10100-002", second.Code)

	require.Equal(t, []string{"account.create", "account.create"}, activity.actions())
}

func TestCreateAccountConcurrentCodesAreDistinct(t *testing.T) {
	repo := newMemoryRepo()
	reg, _ := newTestRegistry(repo)
	group := seedAssetGroup(repo)

	const workers = 16
	var wg sync.WaitGroup
	codes := make(chan string, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc, err := reg.CreateAccount(context.Background(), CreateAccountInput{GroupID: group.ID, Name: "Worker Account"})
			if err != nil {
				errs <- err
				return
			}
			codes <- acc.Code
		}()
	}
	wg.Wait()
	close(codes)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	seen := map[string]bool{}
	for code := range codes {
		require.False(t, seen[code], "code %s allocated twice", code)
		seen[code] = true
	}
	require.Len(t, seen, workers)
}

func TestCreateAccountRetriesOnCodeCollision(t *testing.T) {
	repo := newMemoryRepo()
	reg, _ := newTestRegistry(repo)
	group := seedAssetGroup(repo)

	repo.failDuplicateCode = 1
	acc, err := reg.CreateAccount(context.Background(), CreateAccountInput{GroupID: group.ID, Name: "Cash"})
	require.NoError(t, err)
	require.Equal(t, "10100-001", acc.Code)

	repo.failDuplicateCode = 2
	_, err = reg.CreateAccount(context.Background(), CreateAccountInput{GroupID: group.ID, Name: "Bank"})
	require.ErrorIs(t, err, ErrSequenceConflict)
}

func TestNextChildCodePreview(t *testing.T) {
	repo := newMemoryRepo()
	reg, _ := newTestRegistry(repo)
	group := seedAssetGroup(repo)
	repo.seedAccount(Account{GroupID: group.ID, Code: "10100-004", Name: "Seeded"})

	code, err := reg.NextChildCode(context.Background(), group.ID)
	require.NoError(t, err)
	require.Equal(t, "10100-005", code)

	_, err = reg.NextChildCode(context.Background(), 99)
	require.ErrorIs(t, err, ErrGroupNotFound)
}

func TestUpdateAccountGuards(t *testing.T) {
	repo := newMemoryRepo()
	reg, _ := newTestRegistry(repo)
	account := repo.seedAccount(Account{
		GroupID:    1,
		Code:       "10100-001",
		Name:       "Cash",
		Category:   CategoryAsset,
		NormalSide: NormalDebit,
	})

	t.Run("locked account rejects edits", func(t *testing.T) {
		locked := repo.seedAccount(Account{GroupID: 1, Code: "10100-002", Name: "Frozen", NormalSide: NormalDebit, Locked: true})
		edit := locked
		edit.Name = "Renamed"
		require.ErrorIs(t, reg.UpdateAccount(context.Background(), edit), ErrAccountLocked)
	})

	t.Run("normal side immutable once posted", func(t *testing.T) {
		repo.postings[1] = []Posting{{EntryID: 1, AccountID: account.ID, Debit: 100}}
		edit := account
		edit.NormalSide = NormalCredit
		require.ErrorIs(t, reg.UpdateAccount(context.Background(), edit), ErrNormalSideImmutable)
		delete(repo.postings, 1)
	})

	t.Run("plug balance is engine owned", func(t *testing.T) {
		plug := repo.seedAccount(Account{ID: 5, GroupID: 3, Code: "30100-001", Name: "Equity Plug", Category: CategoryEquity, NormalSide: NormalCredit})
		edit := plug
		edit.OpeningBalance = 999
		require.ErrorIs(t, reg.UpdateAccount(context.Background(), edit), ErrPlugAccountManaged)
	})

	t.Run("plain rename succeeds", func(t *testing.T) {
		edit := account
		edit.Name = "Cash on Hand"
		require.NoError(t, reg.UpdateAccount(context.Background(), edit))
		got, err := reg.GetAccount(context.Background(), account.ID)
		require.NoError(t, err)
		require.Equal(t, "Cash on Hand", got.Name)
	})
}

func TestDeleteAccountGuards(t *testing.T) {
	repo := newMemoryRepo()
	reg, _ := newTestRegistry(repo)

	locked := repo.seedAccount(Account{GroupID: 1, Code: "10100-001", Name: "Frozen", Locked: true})
	require.ErrorIs(t, reg.DeleteAccount(context.Background(), locked.ID), ErrAccountLocked)

	posted := repo.seedAccount(Account{GroupID: 1, Code: "10100-002", Name: "Posted"})
	repo.postings[1] = []Posting{{EntryID: 1, AccountID: posted.ID, Debit: 100}}
	require.ErrorIs(t, reg.DeleteAccount(context.Background(), posted.ID), ErrAccountInUse)

	idle := repo.seedAccount(Account{GroupID: 1, Code: "10100-003", Name: "Idle"})
	require.NoError(t, reg.DeleteAccount(context.Background(), idle.ID))
	_, err := reg.GetAccount(context.Background(), idle.ID)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestLockUnlockAccount(t *testing.T) {
	repo := newMemoryRepo()
	reg, _ := newTestRegistry(repo)
	account := repo.seedAccount(Account{GroupID: 1, Code: "10100-001", Name: "Cash"})

	require.NoError(t, reg.LockAccount(context.Background(), account.ID))
	got, err := reg.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	require.True(t, got.Locked)

	require.NoError(t, reg.UnlockAccount(context.Background(), account.ID))
	got, err = reg.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	require.False(t, got.Locked)

	require.ErrorIs(t, reg.LockAccount(context.Background(), 99), ErrAccountNotFound)
}
