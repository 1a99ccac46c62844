package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/library-loans-api/internal/models"
	"github.com/noah-isme/library-loans-api/pkg/dates"
	appErrors "github.com/noah-isme/library-loans-api/pkg/errors"
)

var patchableLoanFields = map[string]struct{}{
	models.LoanFieldNotes:         {},
	models.LoanFieldStatus:        {},
	models.LoanFieldReturnDate:    {},
	models.LoanFieldStatusHistory: {},
}

// checkTimeOrder rejects a due date that falls before the loan date.
func checkTimeOrder(loanDate time.Time, returnDate *time.Time) error {
	if returnDate == nil {
		return nil
	}
	if dates.Day(loanDate).After(dates.Day(*returnDate)) {
		return appErrors.ErrTimeOrderViolation
	}
	return nil
}

func checkStatus(status models.LoanStatus) error {
	if !status.Valid() {
		return appErrors.ErrInvalidState
	}
	return nil
}

// isOverdue applies the one-day grace period: a loan is overdue once its
// due date plus one day lies strictly before today.
func isOverdue(loan models.Loan, today time.Time) bool {
	if loan.ReturnDate == nil {
		return false
	}
	return dates.Day(*loan.ReturnDate).AddDate(0, 0, 1).Before(dates.Day(today))
}

// loanPatch is a validated partial update.
type loanPatch struct {
	notes         *string
	status        *models.LoanStatus
	statusHistory *string
	setReturnDate bool
	returnDate    *time.Time
}

// parseLoanPatch validates every key before any value so an unknown
// attribute always wins over a malformed one.
func parseLoanPatch(patch map[string]interface{}) (loanPatch, error) {
	var parsed loanPatch
	if len(patch) == 0 {
		return parsed, appErrors.Clone(appErrors.ErrValidation, "No se enviaron atributos para actualizar")
	}

	keys := make([]string, 0, len(patch))
	for key := range patch {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, ok := patchableLoanFields[key]; !ok {
			return parsed, appErrors.Clone(appErrors.ErrInvalidAttribute, fmt.Sprintf("Atributo no válido: %s", key))
		}
	}

	for _, key := range keys {
		value := patch[key]
		switch key {
		case models.LoanFieldNotes, models.LoanFieldStatusHistory:
			text, err := patchString(key, value)
			if err != nil {
				return parsed, err
			}
			if len([]rune(text)) > 500 {
				return parsed, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s admite como máximo 500 caracteres", key))
			}
			if key == models.LoanFieldNotes {
				parsed.notes = &text
			} else {
				parsed.statusHistory = &text
			}
		case models.LoanFieldStatus:
			text, err := patchString(key, value)
			if err != nil {
				return parsed, err
			}
			status := models.LoanStatus(text)
			if err := checkStatus(status); err != nil {
				return parsed, err
			}
			parsed.status = &status
		case models.LoanFieldReturnDate:
			parsed.setReturnDate = true
			if value == nil {
				continue
			}
			raw, ok := value.(string)
			if !ok {
				return parsed, appErrors.ErrInvalidDateFormat
			}
			day, err := dates.Parse(raw)
			if err != nil {
				return parsed, appErrors.Wrap(err, appErrors.ErrInvalidDateFormat.Code, appErrors.ErrInvalidDateFormat.Status, appErrors.ErrInvalidDateFormat.Message)
			}
			parsed.returnDate = &day
		}
	}
	return parsed, nil
}

func patchString(key string, value interface{}) (string, error) {
	if value == nil {
		return "", nil
	}
	text, ok := value.(string)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s debe ser texto", key))
	}
	return strings.TrimSpace(text), nil
}

// apply writes the patch onto loan.
func (p loanPatch) apply(loan *models.Loan) {
	if p.notes != nil {
		loan.Notes = *p.notes
	}
	if p.statusHistory != nil {
		loan.StatusHistory = *p.statusHistory
	}
	if p.status != nil {
		loan.Status = *p.status
	}
	if p.setReturnDate {
		loan.ReturnDate = p.returnDate
	}
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return dates.Day(*a).Equal(dates.Day(*b))
}

// terminalStateError maps a terminal status to its rejection error.
func terminalStateError(status models.LoanStatus) error {
	switch status {
	case models.LoanStatusReturned:
		return appErrors.ErrAlreadyReturned
	case models.LoanStatusOverdue:
		return appErrors.ErrAlreadyOverdue
	}
	return nil
}
