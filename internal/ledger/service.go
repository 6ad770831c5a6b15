package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arkabooks/arkabooks/internal/shared"
)

// ActivityPort records ledger events for the activity trail.
type ActivityPort interface {
	Record(ctx context.Context, log shared.ActivityLog) error
}

// Service is the journal entry store: it posts balanced entries, voids them,
// and answers read projections. Dates are always explicit parameters; the
// service holds no ambient "today".
type Service struct {
	repo      RepositoryPort
	activity  ActivityPort
	wellKnown *WellKnownAccounts
	now       func() time.Time
}

// NewService constructs the entry store.
func NewService(repo RepositoryPort, activity ActivityPort, wellKnown *WellKnownAccounts) *Service {
	return &Service{repo: repo, activity: activity, wellKnown: wellKnown, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostEntry validates and persists a journal entry with its postings as one
// atomic unit. When the input carries no reference, one is allocated under
// the source type's prefix; a lost allocation race is retried once before
// ErrSequenceConflict surfaces.
func (s *Service) PostEntry(ctx context.Context, input EntryInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	// The plug balance is written only by EquityPlugRecompute.
	for _, line := range input.Postings {
		if s.wellKnown.IsPlug(line.AccountID) {
			return JournalEntry{}, ErrPlugAccountManaged
		}
	}
	generated := input.Reference == ""
	if input.OperationID == uuid.Nil {
		input.OperationID = uuid.New()
	}

	entry, err := s.postOnce(ctx, input)
	if generated && errors.Is(err, ErrReferenceTaken) {
		input.Reference = ""
		entry, err = s.postOnce(ctx, input)
		if errors.Is(err, ErrReferenceTaken) {
			return JournalEntry{}, ErrSequenceConflict
		}
	}
	if err != nil {
		return JournalEntry{}, err
	}

	if s.activity != nil {
		_ = s.activity.Record(ctx, shared.ActivityLog{
			ActorID:     input.UserID,
			WarehouseID: input.WarehouseID,
			Action:      "journal.post",
			Entity:      "journal_entry",
			EntityID:    fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"reference": entry.Reference,
				"source":    string(entry.Source),
			},
			At: s.now(),
		})
	}
	return entry, nil
}

func (s *Service) postOnce(ctx context.Context, input EntryInput) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, line := range input.Postings {
			if _, err := tx.GetAccount(ctx, line.AccountID); err != nil {
				return err
			}
		}
		if input.Reference == "" {
			prefix := ReferencePrefix(input.Source)
			seq, err := tx.MaxReferenceSeq(ctx, prefix, input.UserID, input.DateIssued)
			if err != nil {
				return err
			}
			input.Reference = FormatReference(prefix, input.DateIssued, input.UserID, seq+1)
		}
		if err := tx.EnsureOperation(ctx, input.OperationID, input.Reference); err != nil {
			return err
		}
		inserted, err := tx.InsertEntry(ctx, input)
		if err != nil {
			return err
		}
		if err := tx.InsertPostings(ctx, inserted.ID, input.Postings); err != nil {
			return err
		}
		inserted.Postings = toPostings(inserted.ID, input.Postings, s.now())
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// VoidEntry marks an entry VOIDED and excludes it from balances. Entries with
// live downstream finance or stock rows must have those voided first.
func (s *Service) VoidEntry(ctx context.Context, input VoidInput) (JournalEntry, error) {
	if input.EntryID == 0 {
		return JournalEntry{}, errors.New("ledger: entry id required")
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryWithPostings(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if current.Status != EntryStatusActive {
			return ErrEntryAlreadyVoided
		}
		deps, err := tx.CountActiveDependents(ctx, current.OperationID, current.ID)
		if err != nil {
			return err
		}
		if deps > 0 {
			return ErrEntryHasDependents
		}
		if err := tx.UpdateEntryStatus(ctx, current.ID, EntryStatusVoided); err != nil {
			return err
		}
		entry = current
		entry.Status = EntryStatusVoided
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if s.activity != nil {
		_ = s.activity.Record(ctx, shared.ActivityLog{
			ActorID:     input.ActorID,
			WarehouseID: entry.WarehouseID,
			Action:      "journal.void",
			Entity:      "journal_entry",
			EntityID:    fmt.Sprintf("%d", entry.ID),
			Meta:        map[string]any{"reason": input.Reason, "reference": entry.Reference},
			At:          s.now(),
		})
	}
	return entry, nil
}

// ReverseEntry posts a new entry with debit and credit swapped. The ledger
// is append-only: corrections never mutate existing postings.
func (s *Service) ReverseEntry(ctx context.Context, input ReverseInput) (JournalEntry, error) {
	if input.EntryID == 0 {
		return JournalEntry{}, errors.New("ledger: entry id required")
	}
	var original JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		original, err = tx.GetEntryWithPostings(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if original.Status != EntryStatusActive {
			return ErrEntryAlreadyVoided
		}
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}

	date := input.Date
	if date.IsZero() {
		date = original.DateIssued
	}
	description := input.Description
	if description == "" {
		description = fmt.Sprintf("Reversal of %s", original.Reference)
	}
	reversal := EntryInput{
		DateIssued:  date,
		Description: description,
		Source:      original.Source,
		WarehouseID: original.WarehouseID,
		UserID:      input.ActorID,
		Postings:    reversePostings(original.Postings),
	}
	return s.PostEntry(ctx, reversal)
}

// FindByReference returns all headers recorded under one reference in stable
// date-then-id order.
func (s *Service) FindByReference(ctx context.Context, reference string) ([]JournalEntry, error) {
	var entries []JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, err = tx.FindByReference(ctx, reference)
		return err
	})
	return entries, err
}

// FindByAccountAndDateRange lists entries touching one account in a window.
func (s *Service) FindByAccountAndDateRange(ctx context.Context, accountID int64, from, to time.Time) ([]JournalEntry, error) {
	var entries []JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, err = tx.FindByAccountAndDateRange(ctx, accountID, from, to)
		return err
	})
	return entries, err
}

func reversePostings(postings []Posting) []PostingInput {
	out := make([]PostingInput, 0, len(postings))
	for _, p := range postings {
		out = append(out, PostingInput{AccountID: p.AccountID, Debit: p.Credit, Credit: p.Debit})
	}
	return out
}

func toPostings(entryID int64, lines []PostingInput, ts time.Time) []Posting {
	out := make([]Posting, 0, len(lines))
	for _, line := range lines {
		out = append(out, Posting{
			EntryID:   entryID,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			CreatedAt: ts,
		})
	}
	return out
}
