package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/library-loans-api/internal/middleware"
	"github.com/noah-isme/library-loans-api/internal/models"
	"github.com/noah-isme/library-loans-api/internal/repository"
	"github.com/noah-isme/library-loans-api/internal/service"
	appErrors "github.com/noah-isme/library-loans-api/pkg/errors"
)

type loanAPI struct {
	router *gin.Engine
	store  *repository.LoanBadgerRepository
}

func newLoanAPI(t *testing.T, role models.UserRole) *loanAPI {
	gin.SetMode(gin.TestMode)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := repository.NewLoanBadgerRepository(db)
	loans := service.NewLoanService(store, nil, nil)
	sweeper := service.NewLoanSweeper(loans, nil, nil)

	router := gin.New()
	api := router.Group("/v1.0")
	api.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "librarian-1", Role: role})
		c.Next()
	})
	NewLoanHandler(loans, service.NewExportService(loans, nil)).Register(api)
	api.POST("/admin/sweeps", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), NewSweepHandler(sweeper).Run)

	return &loanAPI{router: router, store: store}
}

func (a *loanAPI) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeLoan(t *testing.T, w *httptest.ResponseRecorder) models.Loan {
	var body map[string]models.Loan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	loan, ok := body["prestamo"]
	require.True(t, ok, w.Body.String())
	return loan
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func (a *loanAPI) create(t *testing.T, student, book, due string) models.Loan {
	payload := `{"idEstudiante":"` + student + `","idLibro":"` + book + `","estado":"Prestado","fechaDevolucion":"` + due + `"}`
	w := a.do(http.MethodPost, "/v1.0/prestamos", payload)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeLoan(t, w)
}

func TestLoanHandlerCreate(t *testing.T) {
	api := newLoanAPI(t, models.RoleLibrarian)
	due := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")

	loan := api.create(t, "est-1", "lib-1", due)
	require.NotEmpty(t, loan.ID)
	require.Equal(t, "librarian-1", loan.CreatedBy)
	require.Equal(t, models.LoanStatusActive, loan.Status)
	require.Equal(t, due, loan.ReturnDate.Format("2006-01-02"))
}

func TestLoanHandlerCreateErrors(t *testing.T) {
	api := newLoanAPI(t, models.RoleLibrarian)

	w := api.do(http.MethodPost, "/v1.0/prestamos", `{"idEstudiante":"est-1","idLibro":"lib-1","estado":"Perdido"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, appErrors.ErrInvalidState.Message, decodeError(t, w))

	w = api.do(http.MethodPost, "/v1.0/prestamos", `{"idEstudiante":"est-1","idLibro":"lib-1","estado":"Prestado","fechaDevolucion":"2001-01-01"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, appErrors.ErrTimeOrderViolation.Message, decodeError(t, w))

	w = api.do(http.MethodPost, "/v1.0/prestamos", `{"idEstudiante":"est-1","idLibro":"lib-1","estado":"Prestado","fechaDevolucion":"mañana"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, appErrors.ErrInvalidDateFormat.Message, decodeError(t, w))

	w = api.do(http.MethodPost, "/v1.0/prestamos", `{`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoanHandlerQueries(t *testing.T) {
	api := newLoanAPI(t, models.RoleLibrarian)
	due := time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02")
	first := api.create(t, "est-1", "lib-1", due)
	api.create(t, "est-2", "lib-1", due)

	w := api.do(http.MethodGet, "/v1.0/prestamos", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list map[string][]models.Loan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list["prestamos"], 2)

	w = api.do(http.MethodGet, "/v1.0/prestamos?estado=Vencido", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"prestamos":[]}`, w.Body.String())

	w = api.do(http.MethodGet, "/v1.0/prestamos?estado=garbage", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/v1.0/prestamos/"+first.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, first.ID, decodeLoan(t, w).ID)

	w = api.do(http.MethodGet, "/v1.0/prestamos/missing", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodGet, "/v1.0/prestamos/por-libro/lib-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list["prestamos"], 2)

	w = api.do(http.MethodGet, "/v1.0/prestamos/por-estudiante/est-9", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoanHandlerUpdate(t *testing.T) {
	api := newLoanAPI(t, models.RoleLibrarian)
	due := time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02")
	loan := api.create(t, "est-1", "lib-1", due)

	w := api.do(http.MethodPatch, "/v1.0/prestamos/"+loan.ID, `{"observaciones":"subrayado","fechaDevolucion":null}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeLoan(t, w)
	require.Equal(t, "subrayado", updated.Notes)
	require.Nil(t, updated.ReturnDate)

	w = api.do(http.MethodPatch, "/v1.0/prestamos/"+loan.ID, `{"idLibro":"lib-2"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, decodeError(t, w), "idLibro")

	w = api.do(http.MethodPatch, "/v1.0/prestamos/"+loan.ID, `{"fechaDevolucion":"not-a-date"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, appErrors.ErrInvalidDateFormat.Message, decodeError(t, w))

	stored, err := api.store.FindByID(context.Background(), loan.ID)
	require.NoError(t, err)
	require.Equal(t, "lib-1", stored.BookID)
	require.Equal(t, "subrayado", stored.Notes)
}

func TestLoanHandlerReturnAndDelete(t *testing.T) {
	api := newLoanAPI(t, models.RoleLibrarian)
	due := time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02")
	returned := api.create(t, "est-1", "lib-1", due)
	active := api.create(t, "est-2", "lib-2", due)

	w := api.do(http.MethodPost, "/v1.0/prestamos/"+returned.ID+"/devolucion", `{"historialEstado":"sin daños"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	loan := decodeLoan(t, w)
	require.Equal(t, models.LoanStatusReturned, loan.Status)
	require.Equal(t, "sin daños", loan.StatusHistory)
	require.Equal(t, time.Now().UTC().Format("2006-01-02"), loan.ReturnDate.Format("2006-01-02"))

	w = api.do(http.MethodDelete, "/v1.0/prestamos/"+returned.ID, "")
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, appErrors.ErrAlreadyReturned.Message, decodeError(t, w))

	w = api.do(http.MethodDelete, "/v1.0/prestamos/"+active.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, active.ID, decodeLoan(t, w).ID)

	w = api.do(http.MethodGet, "/v1.0/prestamos/"+active.ID, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoanHandlerExport(t *testing.T) {
	api := newLoanAPI(t, models.RoleLibrarian)
	api.create(t, "est-1", "lib-1", time.Now().UTC().Format("2006-01-02"))

	w := api.do(http.MethodGet, "/v1.0/prestamos/export?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	require.Contains(t, w.Header().Get("Content-Disposition"), "prestamos-")
	require.True(t, strings.Contains(w.Body.String(), "est-1"))

	w = api.do(http.MethodGet, "/v1.0/prestamos/export?format=docx", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweepHandler(t *testing.T) {
	api := newLoanAPI(t, models.RoleAdmin)
	late := api.create(t, "est-1", "lib-1", time.Now().UTC().Format("2006-01-02"))

	stored, err := api.store.FindByID(context.Background(), late.ID)
	require.NoError(t, err)
	past := time.Now().UTC().AddDate(0, 0, -5)
	stored.ReturnDate = &past
	stored.LoanDate = past
	require.NoError(t, api.store.Save(context.Background(), stored))

	w := api.do(http.MethodPost, "/v1.0/admin/sweeps", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body map[string]models.SweepReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body["sweep"].Expired)

	after, err := api.store.FindByID(context.Background(), late.ID)
	require.NoError(t, err)
	require.Equal(t, models.LoanStatusOverdue, after.Status)
}

func TestSweepHandlerFinishesWhenClientGoesAway(t *testing.T) {
	api := newLoanAPI(t, models.RoleAdmin)
	late := api.create(t, "est-1", "lib-1", time.Now().UTC().Format("2006-01-02"))

	stored, err := api.store.FindByID(context.Background(), late.ID)
	require.NoError(t, err)
	past := time.Now().UTC().AddDate(0, 0, -5)
	stored.ReturnDate = &past
	require.NoError(t, api.store.Save(context.Background(), stored))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1.0/admin/sweeps", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	after, err := api.store.FindByID(context.Background(), late.ID)
	require.NoError(t, err)
	require.Equal(t, models.LoanStatusOverdue, after.Status)
}

func TestSweepHandlerRequiresAdmin(t *testing.T) {
	api := newLoanAPI(t, models.RoleLibrarian)
	w := api.do(http.MethodPost, "/v1.0/admin/sweeps", "")
	require.Equal(t, http.StatusForbidden, w.Code)
}
