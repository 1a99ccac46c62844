package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/library-loans-api/internal/models"
	"github.com/noah-isme/library-loans-api/internal/repository"
	"github.com/noah-isme/library-loans-api/pkg/dates"
	appErrors "github.com/noah-isme/library-loans-api/pkg/errors"
)

// LoanStore persists loans. Absent records surface as repository.ErrLoanNotFound
// and lost conditional writes as repository.ErrLoanStatusChanged.
type LoanStore interface {
	FindAll(ctx context.Context) ([]models.Loan, error)
	FindByID(ctx context.Context, id string) (*models.Loan, error)
	FindByStatus(ctx context.Context, status models.LoanStatus) ([]models.Loan, error)
	FindByStudentID(ctx context.Context, studentID string) ([]models.Loan, error)
	FindByBookID(ctx context.Context, bookID string) ([]models.Loan, error)
	Save(ctx context.Context, loan *models.Loan) error
	UpdateIfStatus(ctx context.Context, loan *models.Loan, expected models.LoanStatus) error
	DeleteByID(ctx context.Context, id string) error
	TransitionStatus(ctx context.Context, id string, from, to models.LoanStatus, at time.Time) error
}

// loanWriteAttempts bounds how often a read-modify-write is replayed after
// the loan changed status underneath it.
const loanWriteAttempts = 3

type loanMetrics interface {
	ObserveLoanEvent(event string)
}

// LoanService owns the loan lifecycle: creation rules, partial updates,
// returns and the overdue transition.
type LoanService struct {
	store     LoanStore
	notifier  LoanNotifier
	students  ActiveLoanPolicy
	books     BookAvailabilityPolicy
	metrics   loanMetrics
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// LoanServiceOption configures the service.
type LoanServiceOption func(*LoanService)

// WithActiveLoanPolicy overrides the student policy.
func WithActiveLoanPolicy(policy ActiveLoanPolicy) LoanServiceOption {
	return func(s *LoanService) {
		if policy != nil {
			s.students = policy
		}
	}
}

// WithBookAvailabilityPolicy overrides the book policy.
func WithBookAvailabilityPolicy(policy BookAvailabilityPolicy) LoanServiceOption {
	return func(s *LoanService) {
		if policy != nil {
			s.books = policy
		}
	}
}

// WithLoanMetrics attaches lifecycle counters.
func WithLoanMetrics(metrics loanMetrics) LoanServiceOption {
	return func(s *LoanService) {
		s.metrics = metrics
	}
}

// WithLoanClock overrides the time source.
func WithLoanClock(now func() time.Time) LoanServiceOption {
	return func(s *LoanService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewLoanService constructs the service.
func NewLoanService(store LoanStore, notifier LoanNotifier, logger *zap.Logger, opts ...LoanServiceOption) *LoanService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &LoanService{
		store:     store,
		notifier:  notifier,
		students:  AllowAllPolicy{},
		books:     AllowAllPolicy{},
		validator: validator.New(),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create validates and persists a new loan. The loan date is always the
// current day; any supplied value is discarded.
func (s *LoanService) Create(ctx context.Context, loan models.Loan, actorID string) (*models.Loan, error) {
	now := s.now().UTC()
	loan.ID = ""
	loan.StudentID = strings.TrimSpace(loan.StudentID)
	loan.BookID = strings.TrimSpace(loan.BookID)
	loan.LoanDate = dates.Today(now)
	loan.CreatedAt = time.Time{}
	if loan.CreatedBy == "" {
		loan.CreatedBy = actorID
	}
	if loan.ReturnDate != nil {
		due := dates.Day(*loan.ReturnDate)
		loan.ReturnDate = &due
	}

	if err := s.validator.Struct(loan); err != nil {
		s.observe(LoanEventRejected)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Datos del préstamo inválidos")
	}
	if err := s.checkCreation(ctx, loan); err != nil {
		s.observe(LoanEventRejected)
		return nil, err
	}

	if err := s.store.Save(ctx, &loan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create loan")
	}

	s.logger.Info("loan created",
		zap.String("loan_id", loan.ID),
		zap.String("student_id", loan.StudentID),
		zap.String("book_id", loan.BookID),
		zap.String("created_by", loan.CreatedBy),
	)
	s.observe(LoanEventCreated)
	s.notifier.NotifyLoanCreated(loan)
	return &loan, nil
}

// checkCreation runs the creation rules in their fixed order, stopping at
// the first failure.
func (s *LoanService) checkCreation(ctx context.Context, loan models.Loan) error {
	busy, err := s.students.HasActiveLoan(ctx, loan.StudentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student loans")
	}
	if busy {
		return appErrors.ErrStudentHasActiveLoan
	}

	available, err := s.books.IsAvailable(ctx, loan.BookID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check book availability")
	}
	if !available {
		return appErrors.ErrBookUnavailable
	}

	if err := checkTimeOrder(loan.LoanDate, loan.ReturnDate); err != nil {
		return err
	}
	return checkStatus(loan.Status)
}

// List returns every loan, or only those in status when it is non-empty.
func (s *LoanService) List(ctx context.Context, status string) ([]models.Loan, error) {
	status = strings.TrimSpace(status)
	var (
		loans []models.Loan
		err   error
	)
	if status == "" {
		loans, err = s.store.FindAll(ctx)
	} else {
		if err := checkStatus(models.LoanStatus(status)); err != nil {
			return nil, err
		}
		loans, err = s.store.FindByStatus(ctx, models.LoanStatus(status))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list loans")
	}
	if loans == nil {
		loans = []models.Loan{}
	}
	return loans, nil
}

// ListActive returns the loans still in Prestado.
func (s *LoanService) ListActive(ctx context.Context) ([]models.Loan, error) {
	return s.List(ctx, string(models.LoanStatusActive))
}

// Get fetches one loan.
func (s *LoanService) Get(ctx context.Context, id string) (*models.Loan, error) {
	loan, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapStoreError(err, "failed to load loan")
	}
	return loan, nil
}

// ListByBook returns the loans of a book; none is reported as not found.
func (s *LoanService) ListByBook(ctx context.Context, bookID string) ([]models.Loan, error) {
	loans, err := s.store.FindByBookID(ctx, strings.TrimSpace(bookID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list loans by book")
	}
	if len(loans) == 0 {
		return nil, appErrors.Clone(appErrors.ErrLoanNotFound, "No se encontraron préstamos para el libro")
	}
	return loans, nil
}

// ListByStudent returns the loans of a student; none is reported as not found.
func (s *LoanService) ListByStudent(ctx context.Context, studentID string) ([]models.Loan, error) {
	loans, err := s.store.FindByStudentID(ctx, strings.TrimSpace(studentID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list loans by student")
	}
	if len(loans) == 0 {
		return nil, appErrors.Clone(appErrors.ErrLoanNotFound, "No se encontraron préstamos para el estudiante")
	}
	return loans, nil
}

// Update applies a partial update restricted to the patchable attributes.
// The status itself only moves through MarkReturned or the overdue sweep,
// and a returned loan keeps its actual return date. The write only lands if
// the loan still has the status it was read with; otherwise the patch is
// re-evaluated against the fresh state.
func (s *LoanService) Update(ctx context.Context, id string, patch map[string]interface{}) (*models.Loan, error) {
	return s.retryOnStatusChange(ctx, id, "update", func(loan *models.Loan) (*models.Loan, error) {
		return s.updateOnce(ctx, loan, patch)
	})
}

func (s *LoanService) updateOnce(ctx context.Context, loan *models.Loan, patch map[string]interface{}) (*models.Loan, error) {
	parsed, err := parseLoanPatch(patch)
	if err != nil {
		s.observe(LoanEventRejected)
		return nil, err
	}
	if loan.Status == models.LoanStatusReturned && parsed.setReturnDate && !sameDay(loan.ReturnDate, parsed.returnDate) {
		s.observe(LoanEventRejected)
		return nil, appErrors.ErrAlreadyReturned
	}
	if parsed.status != nil && *parsed.status != loan.Status {
		s.observe(LoanEventRejected)
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "El estado solo cambia mediante devolución o vencimiento")
	}

	next := *loan
	parsed.apply(&next)
	if err := checkTimeOrder(next.LoanDate, next.ReturnDate); err != nil {
		s.observe(LoanEventRejected)
		return nil, err
	}

	if err := s.store.UpdateIfStatus(ctx, &next, loan.Status); err != nil {
		return nil, err
	}
	s.logger.Info("loan updated", zap.String("loan_id", next.ID), zap.Int("fields", len(patch)))
	s.observe(LoanEventUpdated)
	return &next, nil
}

// Delete removes a loan that is still Prestado and returns its last state.
func (s *LoanService) Delete(ctx context.Context, id string) (*models.Loan, error) {
	loan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := terminalStateError(loan.Status); err != nil {
		return nil, err
	}
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return nil, s.mapStoreError(err, "failed to delete loan")
	}
	s.logger.Info("loan deleted", zap.String("loan_id", id))
	s.observe(LoanEventDeleted)
	return loan, nil
}

// MarkReturned records the return of the book today with the given note.
// Overdue loans may still be returned.
func (s *LoanService) MarkReturned(ctx context.Context, id, note string) (*models.Loan, error) {
	if len([]rune(note)) > 500 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "historialEstado admite como máximo 500 caracteres")
	}

	returned, err := s.retryOnStatusChange(ctx, id, "return", func(loan *models.Loan) (*models.Loan, error) {
		if loan.Status == models.LoanStatusReturned {
			return nil, appErrors.ErrAlreadyReturned
		}

		today := dates.Today(s.now())
		previous := loan.Status
		next := *loan
		next.Status = models.LoanStatusReturned
		next.StatusHistory = note
		next.ReturnDate = &today

		if err := s.store.UpdateIfStatus(ctx, &next, previous); err != nil {
			return nil, err
		}
		s.logger.Info("loan returned", zap.String("loan_id", next.ID), zap.String("previous_status", string(previous)))
		return &next, nil
	})
	if err != nil {
		return nil, err
	}
	s.observe(LoanEventReturned)
	s.notifier.NotifyLoanReturned(*returned)
	return returned, nil
}

// retryOnStatusChange loads the loan and runs write against it, reloading
// and replaying when the conditional write finds a different status.
func (s *LoanService) retryOnStatusChange(ctx context.Context, id, op string, write func(loan *models.Loan) (*models.Loan, error)) (*models.Loan, error) {
	for attempt := 1; attempt <= loanWriteAttempts; attempt++ {
		loan, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		result, err := write(loan)
		if errors.Is(err, repository.ErrLoanStatusChanged) {
			s.logger.Debug("loan changed during write, retrying",
				zap.String("loan_id", id), zap.String("op", op), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, s.mapStoreError(err, "failed to "+op+" loan")
		}
		return result, nil
	}
	s.logger.Warn("loan write abandoned after repeated status changes", zap.String("loan_id", id), zap.String("op", op))
	return nil, appErrors.Clone(appErrors.ErrConflict, "El préstamo cambió durante la operación; inténtelo de nuevo")
}

// Expire moves a Prestado loan past its grace period to Vencido. It reports
// false without error when the loan is not eligible or changed underneath.
func (s *LoanService) Expire(ctx context.Context, id string, now time.Time) (*models.Loan, bool, error) {
	loan, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrLoanNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load loan %s: %w", id, err)
	}
	if loan.Status != models.LoanStatusActive || !isOverdue(*loan, dates.Today(now)) {
		return loan, false, nil
	}

	err = s.store.TransitionStatus(ctx, id, models.LoanStatusActive, models.LoanStatusOverdue, now.UTC())
	if errors.Is(err, repository.ErrLoanStatusChanged) {
		return loan, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("expire loan %s: %w", id, err)
	}

	loan.Status = models.LoanStatusOverdue
	loan.UpdatedAt = now.UTC()
	s.observe(LoanEventExpired)
	return loan, true, nil
}

func (s *LoanService) mapStoreError(err error, message string) error {
	if errors.Is(err, repository.ErrLoanNotFound) {
		return appErrors.ErrLoanNotFound
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *LoanService) observe(event string) {
	if s.metrics != nil {
		s.metrics.ObserveLoanEvent(event)
	}
}
