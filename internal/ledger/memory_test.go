package ledger

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arkabooks/arkabooks/internal/shared"
)

// memoryRepo implements RepositoryPort and TxRepository over maps so service
// semantics can be exercised without Postgres.
type memoryRepo struct {
	mu sync.Mutex

	nextAccountID int64
	nextEntryID   int64
	nextPostingID int64

	accounts   map[int64]Account
	groups     map[int64]AccountGroup
	operations map[string]uuid.UUID
	entries    map[int64]JournalEntry
	postings   map[int64][]Posting

	// externalDeps simulates live finance/stock rows tied to an operation.
	externalDeps map[uuid.UUID]int64
	// failDuplicateCode forces InsertAccount to report a code collision the
	// next N times it is called.
	failDuplicateCode int
	// failReferenceTaken forces EnsureOperation to lose the race N times.
	failReferenceTaken int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts:     map[int64]Account{},
		groups:       map[int64]AccountGroup{},
		operations:   map[string]uuid.UUID{},
		entries:      map[int64]JournalEntry{},
		postings:     map[int64][]Posting{},
		externalDeps: map[uuid.UUID]int64{},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, m)
}

func (m *memoryRepo) seedGroup(g AccountGroup) AccountGroup {
	m.groups[g.ID] = g
	return g
}

func (m *memoryRepo) seedAccount(a Account) Account {
	if a.ID == 0 {
		m.nextAccountID++
		a.ID = m.nextAccountID
	} else if a.ID > m.nextAccountID {
		m.nextAccountID = a.ID
	}
	m.accounts[a.ID] = a
	return a
}

func (m *memoryRepo) GetAccount(_ context.Context, id int64) (Account, error) {
	acc, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (m *memoryRepo) ListAccounts(_ context.Context) ([]Account, error) {
	out := make([]Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memoryRepo) InsertAccount(_ context.Context, acc Account) (Account, error) {
	if m.failDuplicateCode > 0 {
		m.failDuplicateCode--
		return Account{}, ErrDuplicateCode
	}
	for _, existing := range m.accounts {
		if existing.Code == acc.Code {
			return Account{}, ErrDuplicateCode
		}
	}
	m.nextAccountID++
	acc.ID = m.nextAccountID
	m.accounts[acc.ID] = acc
	return acc, nil
}

func (m *memoryRepo) UpdateAccount(_ context.Context, acc Account) error {
	if _, ok := m.accounts[acc.ID]; !ok {
		return ErrAccountNotFound
	}
	m.accounts[acc.ID] = acc
	return nil
}

func (m *memoryRepo) SetAccountLocked(_ context.Context, id int64, locked bool) error {
	acc, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	acc.Locked = locked
	m.accounts[id] = acc
	return nil
}

func (m *memoryRepo) DeleteAccount(_ context.Context, id int64) error {
	if _, ok := m.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(m.accounts, id)
	return nil
}

func (m *memoryRepo) SetOpeningBalance(_ context.Context, id int64, amount int64) error {
	acc, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	acc.OpeningBalance = amount
	m.accounts[id] = acc
	return nil
}

func (m *memoryRepo) CountAccountPostings(_ context.Context, id int64) (int64, error) {
	var n int64
	for _, lines := range m.postings {
		for _, p := range lines {
			if p.AccountID == id {
				n++
			}
		}
	}
	return n, nil
}

func (m *memoryRepo) CountAccountRefs(ctx context.Context, id int64) (int64, error) {
	return m.CountAccountPostings(ctx, id)
}

func (m *memoryRepo) GetGroupForUpdate(_ context.Context, id int64) (AccountGroup, error) {
	g, ok := m.groups[id]
	if !ok {
		return AccountGroup{}, ErrGroupNotFound
	}
	return g, nil
}

func (m *memoryRepo) MaxChildSuffix(_ context.Context, groupID int64) (int, error) {
	max := 0
	for _, acc := range m.accounts {
		if acc.GroupID != groupID {
			continue
		}
		idx := strings.LastIndex(acc.Code, "-")
		if idx < 0 {
			continue
		}
		suffix, err := strconv.Atoi(acc.Code[idx+1:])
		if err == nil && suffix > max {
			max = suffix
		}
	}
	return max, nil
}

func (m *memoryRepo) EnsureOperation(_ context.Context, id uuid.UUID, reference string) error {
	if m.failReferenceTaken > 0 {
		m.failReferenceTaken--
		return ErrReferenceTaken
	}
	if existing, ok := m.operations[reference]; ok && existing != id {
		return ErrReferenceTaken
	}
	m.operations[reference] = id
	return nil
}

func (m *memoryRepo) MaxReferenceSeq(_ context.Context, prefix string, userID int64, day time.Time) (int, error) {
	pattern := fmt.Sprintf("%s.%s.%d.", prefix, day.Format(referenceDateLayout), userID)
	max := 0
	for _, entry := range m.entries {
		if !strings.HasPrefix(entry.Reference, pattern) {
			continue
		}
		seq, err := strconv.Atoi(entry.Reference[len(pattern):])
		if err == nil && seq > max {
			max = seq
		}
	}
	return max, nil
}

func (m *memoryRepo) InsertEntry(_ context.Context, in EntryInput) (JournalEntry, error) {
	m.nextEntryID++
	entry := JournalEntry{
		ID:          m.nextEntryID,
		OperationID: in.OperationID,
		Reference:   in.Reference,
		DateIssued:  in.DateIssued,
		Description: in.Description,
		Source:      in.Source,
		WarehouseID: in.WarehouseID,
		UserID:      in.UserID,
		Status:      EntryStatusActive,
	}
	m.entries[entry.ID] = entry
	return entry, nil
}

func (m *memoryRepo) InsertPostings(_ context.Context, entryID int64, lines []PostingInput) error {
	for _, line := range lines {
		m.nextPostingID++
		m.postings[entryID] = append(m.postings[entryID], Posting{
			ID:        m.nextPostingID,
			EntryID:   entryID,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
		})
	}
	return nil
}

func (m *memoryRepo) GetEntryWithPostings(_ context.Context, id int64) (JournalEntry, error) {
	entry, ok := m.entries[id]
	if !ok {
		return JournalEntry{}, ErrEntryNotFound
	}
	entry.Postings = append([]Posting(nil), m.postings[id]...)
	return entry, nil
}

func (m *memoryRepo) UpdateEntryStatus(_ context.Context, id int64, status EntryStatus) error {
	entry, ok := m.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	entry.Status = status
	m.entries[id] = entry
	return nil
}

func (m *memoryRepo) CountActiveDependents(_ context.Context, operationID uuid.UUID, excludeEntryID int64) (int64, error) {
	n := m.externalDeps[operationID]
	for _, entry := range m.entries {
		if entry.OperationID == operationID && entry.ID != excludeEntryID && entry.Status == EntryStatusActive {
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) FindByReference(_ context.Context, reference string) ([]JournalEntry, error) {
	var out []JournalEntry
	for _, entry := range m.entries {
		if entry.Reference == reference {
			entry.Postings = append([]Posting(nil), m.postings[entry.ID]...)
			out = append(out, entry)
		}
	}
	sortEntries(out)
	return out, nil
}

func (m *memoryRepo) FindByAccountAndDateRange(_ context.Context, accountID int64, from, to time.Time) ([]JournalEntry, error) {
	var out []JournalEntry
	for _, entry := range m.entries {
		if entry.DateIssued.Before(from) || entry.DateIssued.After(to) {
			continue
		}
		for _, p := range m.postings[entry.ID] {
			if p.AccountID == accountID {
				entry.Postings = append([]Posting(nil), m.postings[entry.ID]...)
				out = append(out, entry)
				break
			}
		}
	}
	sortEntries(out)
	return out, nil
}

func (m *memoryRepo) SumPostings(_ context.Context, accountID int64, from, to *time.Time) (int64, int64, error) {
	var debit, credit int64
	for _, entry := range m.entries {
		if entry.Status != EntryStatusActive || !within(entry.DateIssued, from, to) {
			continue
		}
		for _, p := range m.postings[entry.ID] {
			if p.AccountID == accountID {
				debit += p.Debit
				credit += p.Credit
			}
		}
	}
	return debit, credit, nil
}

func (m *memoryRepo) ListAccountBalances(ctx context.Context, from, to *time.Time) ([]AccountBalance, error) {
	accounts, _ := m.ListAccounts(ctx)
	out := make([]AccountBalance, 0, len(accounts))
	for _, acc := range accounts {
		debit, credit, _ := m.SumPostings(ctx, acc.ID, from, to)
		out = append(out, AccountBalance{Account: acc, Debit: debit, Credit: credit})
	}
	return out, nil
}

func (m *memoryRepo) SumCashActivityBySource(_ context.Context, from, to time.Time) (map[SourceType]int64, error) {
	out := map[SourceType]int64{}
	for _, entry := range m.entries {
		if entry.Status != EntryStatusActive || entry.DateIssued.Before(from) || entry.DateIssued.After(to) {
			continue
		}
		for _, p := range m.postings[entry.ID] {
			acc, ok := m.accounts[p.AccountID]
			if !ok || !acc.IsCashBank {
				continue
			}
			out[entry.Source] += signed(acc.NormalSide, p.Debit, p.Credit)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListUnbalancedReferences(_ context.Context) ([]string, error) {
	var references []string
	for _, entry := range m.entries {
		if entry.Status != EntryStatusActive {
			continue
		}
		var debit, credit int64
		for _, p := range m.postings[entry.ID] {
			debit += p.Debit
			credit += p.Credit
		}
		if debit != credit {
			references = append(references, entry.Reference)
		}
	}
	sort.Strings(references)
	return references, nil
}

func sortEntries(entries []JournalEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].DateIssued.Equal(entries[j].DateIssued) {
			return entries[i].DateIssued.Before(entries[j].DateIssued)
		}
		return entries[i].ID < entries[j].ID
	})
}

func within(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

// recordingActivity captures activity logs for assertions.
type recordingActivity struct {
	mu   sync.Mutex
	logs []shared.ActivityLog
}

func (r *recordingActivity) Record(_ context.Context, log shared.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *recordingActivity) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for _, log := range r.logs {
		out = append(out, log.Action)
	}
	return out
}

func testWellKnown(plugID int64) *WellKnownAccounts {
	return NewWellKnownAccounts(map[WellKnownKey]int64{
		WellKnownCash:             1,
		WellKnownBank:             2,
		WellKnownInventory:        3,
		WellKnownCOGS:             4,
		WellKnownEquityPlug:       plugID,
		WellKnownCurrentEarnings:  6,
		WellKnownIncomeFromSales:  7,
		WellKnownPurchaseDiscount: 8,
		WellKnownSalesDiscount:    9,
		WellKnownReceivable:       10,
		WellKnownPayable:          11,
		WellKnownShippingExpense:  12,
	})
}
