package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/library-loans-api/internal/models"
	appErrors "github.com/noah-isme/library-loans-api/pkg/errors"
)

type tokenValidatorStub struct {
	claims *models.JWTClaims
}

func (s tokenValidatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

func newAuthRouter(claims *models.JWTClaims, roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(tokenValidatorStub{claims: claims}))
	router.GET("/open", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/admin", RequireRoles(roles...), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return router
}

func serve(router *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestJWTMiddleware(t *testing.T) {
	router := newAuthRouter(&models.JWTClaims{UserID: "user-1", Role: models.RoleLibrarian})

	require.Equal(t, http.StatusUnauthorized, serve(router, "/open", "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(router, "/open", "Basic abc").Code)
	require.Equal(t, http.StatusUnauthorized, serve(router, "/open", "Bearer bad").Code)
	require.Equal(t, http.StatusNoContent, serve(router, "/open", "Bearer good").Code)
}

func TestRequireRoles(t *testing.T) {
	librarian := newAuthRouter(&models.JWTClaims{UserID: "user-1", Role: models.RoleLibrarian}, models.RoleAdmin, models.RoleSuperAdmin)
	require.Equal(t, http.StatusForbidden, serve(librarian, "/admin", "Bearer good").Code)

	admin := newAuthRouter(&models.JWTClaims{UserID: "user-2", Role: models.RoleAdmin}, models.RoleAdmin, models.RoleSuperAdmin)
	require.Equal(t, http.StatusNoContent, serve(admin, "/admin", "Bearer good").Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	require.Equal(t, http.StatusUnauthorized, serve(router, "/admin", "").Code)
}

type observerStub struct {
	method, path string
	status       int
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.method, o.path, o.status = method, path, status
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	router := gin.New()
	router.Use(Metrics(observer))
	router.GET("/prestamos/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(router, "/prestamos/abc", "")
	require.Equal(t, http.MethodGet, observer.method)
	require.Equal(t, "/prestamos/:id", observer.path)
	require.Equal(t, http.StatusOK, observer.status)
}
