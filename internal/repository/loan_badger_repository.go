package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/noah-isme/library-loans-api/internal/models"
)

const (
	badgerLoanPrefix    = "loan:"
	badgerStatusIndex   = "idx:status:"
	badgerStudentIndex  = "idx:student:"
	badgerBookIndex     = "idx:book:"
	badgerIndexSep      = "\x00"
	badgerConflictRetry = 3
)

var badgerJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// LoanBadgerRepository persists loans in an embedded Badger store, keeping
// secondary index keys for status, student and book lookups.
type LoanBadgerRepository struct {
	db *badger.DB
}

// NewLoanBadgerRepository constructs the repository.
func NewLoanBadgerRepository(db *badger.DB) *LoanBadgerRepository {
	return &LoanBadgerRepository{db: db}
}

// FindAll returns every loan, newest first.
func (r *LoanBadgerRepository) FindAll(ctx context.Context) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(badgerLoanPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var loan models.Loan
			if err := it.Item().Value(func(val []byte) error {
				return badgerJSON.Unmarshal(val, &loan)
			}); err != nil {
				return fmt.Errorf("decode loan: %w", err)
			}
			loans = append(loans, loan)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	sortLoans(loans)
	return loans, nil
}

// FindByStatus returns loans in the given status.
func (r *LoanBadgerRepository) FindByStatus(ctx context.Context, status models.LoanStatus) ([]models.Loan, error) {
	return r.findByIndex(ctx, badgerStatusIndex, string(status), func(l models.Loan) bool { return l.Status == status })
}

// FindByStudentID returns the loans of one student.
func (r *LoanBadgerRepository) FindByStudentID(ctx context.Context, studentID string) ([]models.Loan, error) {
	return r.findByIndex(ctx, badgerStudentIndex, studentID, func(l models.Loan) bool { return l.StudentID == studentID })
}

// FindByBookID returns the loans of one book.
func (r *LoanBadgerRepository) FindByBookID(ctx context.Context, bookID string) ([]models.Loan, error) {
	return r.findByIndex(ctx, badgerBookIndex, bookID, func(l models.Loan) bool { return l.BookID == bookID })
}

// FindByID fetches a loan by identifier.
func (r *LoanBadgerRepository) FindByID(ctx context.Context, id string) (*models.Loan, error) {
	var loan *models.Loan
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		loan, err = getLoan(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Save inserts a new loan or overwrites the mutable attributes of an
// existing one. Student, book, loan date and audit creation fields are
// write-once.
func (r *LoanBadgerRepository) Save(ctx context.Context, loan *models.Loan) error {
	now := time.Now().UTC()
	if loan.ID == "" {
		loan.ID = uuid.NewString()
	}
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = now
	}
	loan.UpdatedAt = now

	return r.update(func(txn *badger.Txn) error {
		stored, err := getLoan(txn, loan.ID)
		switch {
		case errors.Is(err, ErrLoanNotFound):
			stored = nil
		case err != nil:
			return err
		}

		return overwriteLoan(txn, stored, loan)
	})
}

// UpdateIfStatus overwrites the mutable attributes of an existing loan only
// while it is still in the expected status. A missing loan is reported as
// ErrLoanNotFound.
func (r *LoanBadgerRepository) UpdateIfStatus(ctx context.Context, loan *models.Loan, expected models.LoanStatus) error {
	loan.UpdatedAt = time.Now().UTC()

	return r.update(func(txn *badger.Txn) error {
		stored, err := getLoan(txn, loan.ID)
		if err != nil {
			return err
		}
		if stored.Status != expected {
			return ErrLoanStatusChanged
		}
		return overwriteLoan(txn, stored, loan)
	})
}

// DeleteByID removes a loan and its index keys.
func (r *LoanBadgerRepository) DeleteByID(ctx context.Context, id string) error {
	return r.update(func(txn *badger.Txn) error {
		stored, err := getLoan(txn, id)
		if err != nil {
			return err
		}
		if err := deleteIndexes(txn, *stored); err != nil {
			return err
		}
		return txn.Delete(loanKey(id))
	})
}

// TransitionStatus moves a loan from one status to another only if it is
// still in the expected status.
func (r *LoanBadgerRepository) TransitionStatus(ctx context.Context, id string, from, to models.LoanStatus, at time.Time) error {
	return r.update(func(txn *badger.Txn) error {
		stored, err := getLoan(txn, id)
		if errors.Is(err, ErrLoanNotFound) {
			return ErrLoanStatusChanged
		}
		if err != nil {
			return err
		}
		if stored.Status != from {
			return ErrLoanStatusChanged
		}
		if err := txn.Delete(indexKey(badgerStatusIndex, string(stored.Status), id)); err != nil {
			return err
		}
		stored.Status = to
		stored.UpdatedAt = at
		return putLoan(txn, *stored)
	})
}

func (r *LoanBadgerRepository) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < badgerConflictRetry; attempt++ {
		err = r.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("badger update: %w", err)
}

func (r *LoanBadgerRepository) findByIndex(ctx context.Context, index, value string, match func(models.Loan) bool) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(index + value + badgerIndexSep)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := string(bytes.TrimPrefix(it.Item().Key(), prefix))
			loan, err := getLoan(txn, id)
			if errors.Is(err, ErrLoanNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if match(*loan) {
				loans = append(loans, *loan)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list loans by index: %w", err)
	}
	sortLoans(loans)
	return loans, nil
}

// overwriteLoan writes loan over stored (nil for an insert), keeping the
// write-once fields of stored and refreshing the index keys.
func overwriteLoan(txn *badger.Txn, stored, loan *models.Loan) error {
	next := *loan
	if stored != nil {
		next.StudentID = stored.StudentID
		next.BookID = stored.BookID
		next.LoanDate = stored.LoanDate
		next.CreatedBy = stored.CreatedBy
		next.CreatedAt = stored.CreatedAt
		if err := deleteIndexes(txn, *stored); err != nil {
			return err
		}
	}
	if err := putLoan(txn, next); err != nil {
		return err
	}
	*loan = next
	return nil
}

func getLoan(txn *badger.Txn, id string) (*models.Loan, error) {
	item, err := txn.Get(loanKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	var loan models.Loan
	if err := item.Value(func(val []byte) error {
		return badgerJSON.Unmarshal(val, &loan)
	}); err != nil {
		return nil, fmt.Errorf("decode loan: %w", err)
	}
	return &loan, nil
}

func putLoan(txn *badger.Txn, loan models.Loan) error {
	payload, err := badgerJSON.Marshal(loan)
	if err != nil {
		return fmt.Errorf("encode loan: %w", err)
	}
	if err := txn.Set(loanKey(loan.ID), payload); err != nil {
		return err
	}
	for _, key := range indexKeys(loan) {
		if err := txn.Set(key, nil); err != nil {
			return err
		}
	}
	return nil
}

func deleteIndexes(txn *badger.Txn, loan models.Loan) error {
	for _, key := range indexKeys(loan) {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func indexKeys(loan models.Loan) [][]byte {
	return [][]byte{
		indexKey(badgerStatusIndex, string(loan.Status), loan.ID),
		indexKey(badgerStudentIndex, loan.StudentID, loan.ID),
		indexKey(badgerBookIndex, loan.BookID, loan.ID),
	}
}

func loanKey(id string) []byte {
	return []byte(badgerLoanPrefix + id)
}

func indexKey(index, value, id string) []byte {
	return []byte(index + value + badgerIndexSep + id)
}

func sortLoans(loans []models.Loan) {
	sort.SliceStable(loans, func(i, j int) bool {
		if loans[i].CreatedAt.Equal(loans[j].CreatedAt) {
			return loans[i].ID < loans[j].ID
		}
		return loans[i].CreatedAt.After(loans[j].CreatedAt)
	})
}
