package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/library-loans-api/internal/dto"
	"github.com/noah-isme/library-loans-api/internal/models"
	appErrors "github.com/noah-isme/library-loans-api/pkg/errors"
)

func TestExportServiceCSV(t *testing.T) {
	store := newLoanStoreStub(
		seededLoan("a", models.LoanStatusActive, day(3)),
		seededLoan("b", models.LoanStatusOverdue, nil),
	)
	svc := NewExportService(newTestLoanService(store, nil), nil)

	file, err := svc.ExportLoans(context.Background(), dto.LoanExportQuery{Format: "CSV", Status: "Vencido"})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(file.Filename, ".csv"))
	require.Contains(t, file.ContentType, "text/csv")

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "Estudiante")
	require.Contains(t, lines[1], "est-b")
	require.Contains(t, lines[1], "Vencido")
}

func TestExportServicePDF(t *testing.T) {
	store := newLoanStoreStub(seededLoan("a", models.LoanStatusActive, day(3)))
	svc := NewExportService(newTestLoanService(store, nil), nil)

	file, err := svc.ExportLoans(context.Background(), dto.LoanExportQuery{Format: "pdf"})
	require.NoError(t, err)
	require.Equal(t, "application/pdf", file.ContentType)
	require.True(t, strings.HasPrefix(string(file.Data), "%PDF"))
}

func TestExportServiceRejectsInput(t *testing.T) {
	svc := NewExportService(newTestLoanService(newLoanStoreStub(), nil), nil)

	_, err := svc.ExportLoans(context.Background(), dto.LoanExportQuery{Format: "xlsx"})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.ExportLoans(context.Background(), dto.LoanExportQuery{Status: "Perdido"})
	require.ErrorIs(t, err, appErrors.ErrInvalidState)
}
