package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/library-loans-api/internal/models"
)

var (
	// ErrLoanNotFound is returned when no loan carries the requested id.
	ErrLoanNotFound = errors.New("loan not found")
	// ErrLoanStatusChanged is returned by the conditional writes when the
	// loan is missing or no longer in the expected status.
	ErrLoanStatusChanged = errors.New("loan status changed")
)

const loanTable = "loans"

var loanColumns = []interface{}{
	"id", "student_id", "book_id", "loan_date", "return_date", "status",
	"notes", "status_history", "created_by", "created_at", "updated_at",
}

// LoanSchema creates the loans table and its lookup indexes.
const LoanSchema = `CREATE TABLE IF NOT EXISTS loans (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL,
	book_id TEXT NOT NULL,
	loan_date DATE NOT NULL,
	return_date DATE NULL,
	status TEXT NOT NULL CHECK (status IN ('Prestado', 'Vencido', 'Devuelto')),
	notes TEXT NOT NULL DEFAULT '',
	status_history TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_loans_status ON loans (status);
CREATE INDEX IF NOT EXISTS idx_loans_student ON loans (student_id);
CREATE INDEX IF NOT EXISTS idx_loans_book ON loans (book_id);`

// LoanRepository persists loans in PostgreSQL.
type LoanRepository struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

// NewLoanRepository constructs the repository.
func NewLoanRepository(db *sqlx.DB) *LoanRepository {
	return &LoanRepository{db: db, dialect: goqu.Dialect("postgres")}
}

// EnsureSchema applies the loans DDL.
func (r *LoanRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, LoanSchema); err != nil {
		return fmt.Errorf("ensure loans schema: %w", err)
	}
	return nil
}

// FindAll returns every loan, newest first.
func (r *LoanRepository) FindAll(ctx context.Context) ([]models.Loan, error) {
	return r.selectLoans(ctx, "list loans")
}

// FindByStatus returns loans in the given status.
func (r *LoanRepository) FindByStatus(ctx context.Context, status models.LoanStatus) ([]models.Loan, error) {
	return r.selectLoans(ctx, "list loans by status", goqu.C("status").Eq(string(status)))
}

// FindByStudentID returns the loans of one student.
func (r *LoanRepository) FindByStudentID(ctx context.Context, studentID string) ([]models.Loan, error) {
	return r.selectLoans(ctx, "list loans by student", goqu.C("student_id").Eq(studentID))
}

// FindByBookID returns the loans of one book.
func (r *LoanRepository) FindByBookID(ctx context.Context, bookID string) ([]models.Loan, error) {
	return r.selectLoans(ctx, "list loans by book", goqu.C("book_id").Eq(bookID))
}

// FindByID fetches a loan by identifier.
func (r *LoanRepository) FindByID(ctx context.Context, id string) (*models.Loan, error) {
	query, args, err := r.dialect.From(loanTable).Prepared(true).
		Select(loanColumns...).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get loan: %w", err)
	}

	var loan models.Loan
	if err := r.db.GetContext(ctx, &loan, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLoanNotFound
		}
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return &loan, nil
}

// Save inserts a new loan or overwrites the mutable attributes of an
// existing one. Student, book, loan date and audit creation fields are
// write-once.
func (r *LoanRepository) Save(ctx context.Context, loan *models.Loan) error {
	now := time.Now().UTC()
	if loan.ID == "" {
		loan.ID = uuid.NewString()
	}
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = now
	}
	loan.UpdatedAt = now

	const query = `INSERT INTO loans
	(id, student_id, book_id, loan_date, return_date, status, notes, status_history, created_by, created_at, updated_at)
	VALUES (:id, :student_id, :book_id, :loan_date, :return_date, :status, :notes, :status_history, :created_by, :created_at, :updated_at)
	ON CONFLICT (id) DO UPDATE SET
		return_date = EXCLUDED.return_date,
		status = EXCLUDED.status,
		notes = EXCLUDED.notes,
		status_history = EXCLUDED.status_history,
		updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, loan); err != nil {
		return fmt.Errorf("save loan: %w", err)
	}
	return nil
}

// UpdateIfStatus overwrites the mutable attributes of an existing loan only
// while it is still in the expected status.
func (r *LoanRepository) UpdateIfStatus(ctx context.Context, loan *models.Loan, expected models.LoanStatus) error {
	loan.UpdatedAt = time.Now().UTC()

	const query = `UPDATE loans
	SET return_date = $1, status = $2, notes = $3, status_history = $4, updated_at = $5
	WHERE id = $6 AND status = $7`
	res, err := r.db.ExecContext(ctx, query,
		loan.ReturnDate, string(loan.Status), loan.Notes, loan.StatusHistory, loan.UpdatedAt,
		loan.ID, string(expected),
	)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update loan rows affected: %w", err)
	}
	if affected == 0 {
		return ErrLoanStatusChanged
	}
	return nil
}

// DeleteByID removes a loan.
func (r *LoanRepository) DeleteByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM loans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete loan rows affected: %w", err)
	}
	if affected == 0 {
		return ErrLoanNotFound
	}
	return nil
}

// TransitionStatus moves a loan from one status to another only if it is
// still in the expected status.
func (r *LoanRepository) TransitionStatus(ctx context.Context, id string, from, to models.LoanStatus, at time.Time) error {
	const query = `UPDATE loans SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, string(to), at, id, string(from))
	if err != nil {
		return fmt.Errorf("transition loan status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition loan rows affected: %w", err)
	}
	if affected == 0 {
		return ErrLoanStatusChanged
	}
	return nil
}

func (r *LoanRepository) selectLoans(ctx context.Context, op string, where ...exp.Expression) ([]models.Loan, error) {
	ds := r.dialect.From(loanTable).Prepared(true).Select(loanColumns...)
	if len(where) > 0 {
		ds = ds.Where(where...)
	}
	query, args, err := ds.Order(goqu.C("created_at").Desc(), goqu.C("id").Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", op, err)
	}

	var loans []models.Loan
	if err := r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return loans, nil
}
