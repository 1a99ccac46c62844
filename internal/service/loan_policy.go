package service

import (
	"context"

	"github.com/samber/lo"

	"github.com/noah-isme/library-loans-api/internal/models"
)

// ActiveLoanPolicy decides whether a student already holds a loan that
// blocks a new one.
type ActiveLoanPolicy interface {
	HasActiveLoan(ctx context.Context, studentID string) (bool, error)
}

// BookAvailabilityPolicy decides whether a book can be lent.
type BookAvailabilityPolicy interface {
	IsAvailable(ctx context.Context, bookID string) (bool, error)
}

// AllowAllPolicy never blocks a loan.
type AllowAllPolicy struct{}

// HasActiveLoan implements ActiveLoanPolicy.
func (AllowAllPolicy) HasActiveLoan(ctx context.Context, studentID string) (bool, error) {
	return false, nil
}

// IsAvailable implements BookAvailabilityPolicy.
func (AllowAllPolicy) IsAvailable(ctx context.Context, bookID string) (bool, error) {
	return true, nil
}

type loanFinder interface {
	FindByStudentID(ctx context.Context, studentID string) ([]models.Loan, error)
	FindByBookID(ctx context.Context, bookID string) ([]models.Loan, error)
}

// SingleActiveLoanPolicy allows one open loan per student and per book,
// counting overdue loans as still open.
type SingleActiveLoanPolicy struct {
	loans loanFinder
}

// NewSingleActiveLoanPolicy builds the policy on top of the loan store.
func NewSingleActiveLoanPolicy(loans loanFinder) *SingleActiveLoanPolicy {
	return &SingleActiveLoanPolicy{loans: loans}
}

// HasActiveLoan implements ActiveLoanPolicy.
func (p *SingleActiveLoanPolicy) HasActiveLoan(ctx context.Context, studentID string) (bool, error) {
	loans, err := p.loans.FindByStudentID(ctx, studentID)
	if err != nil {
		return false, err
	}
	return hasOpenLoan(loans), nil
}

// IsAvailable implements BookAvailabilityPolicy.
func (p *SingleActiveLoanPolicy) IsAvailable(ctx context.Context, bookID string) (bool, error) {
	loans, err := p.loans.FindByBookID(ctx, bookID)
	if err != nil {
		return false, err
	}
	return !hasOpenLoan(loans), nil
}

func hasOpenLoan(loans []models.Loan) bool {
	return lo.ContainsBy(loans, func(loan models.Loan) bool {
		return loan.Status != models.LoanStatusReturned
	})
}
