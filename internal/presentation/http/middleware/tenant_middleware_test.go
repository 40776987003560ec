package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/performance"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/tenant"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubContextResolver struct {
	ctx    *tenant.Context
	err    error
	logger *logging.ChanneledLogger
}

func (s *stubContextResolver) GetContext(*gin.Context) (*tenant.Context, error) {
	return s.ctx, s.err
}

func (s *stubContextResolver) GetLogger() *logging.ChanneledLogger {
	return s.logger
}

func newTenantRouter(t *testing.T, resolver *stubContextResolver) (*gin.Engine, *bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{OutputToConsole: true})
	require.NoError(t, err)
	resolver.logger = logger

	reached := false
	r := gin.New()
	r.Use(resolveTenant(resolver, performance.NewTracker(performance.DefaultTrackerConfig())))
	r.POST("/track/touch", func(c *gin.Context) {
		reached = true
		tenantCtx, ok := GetTenantContext(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"tenantId": tenantCtx.TenantID})
	})
	return r, &reached
}

func TestTenantMiddlewareRejectsReservedTenant(t *testing.T) {
	r, reached := newTenantRouter(t, &stubContextResolver{
		ctx: &tenant.Context{TenantID: "acme", Status: "reserved"},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/track/touch", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "unknown or inactive tenant")
	assert.False(t, *reached)
}

func TestTenantMiddlewareRejectsInactiveTenant(t *testing.T) {
	r, reached := newTenantRouter(t, &stubContextResolver{
		ctx: &tenant.Context{TenantID: "acme", Status: "inactive"},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/track/touch", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, *reached)
}

func TestTenantMiddlewareServesActiveTenant(t *testing.T) {
	r, reached := newTenantRouter(t, &stubContextResolver{
		ctx: &tenant.Context{TenantID: "acme", Status: "active"},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/track/touch", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acme")
	assert.True(t, *reached)
}

func TestTenantMiddlewareUnknownTenantIs404(t *testing.T) {
	r, reached := newTenantRouter(t, &stubContextResolver{
		err: errors.New("unknown tenant: ghost"),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/track/touch", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, *reached)
}
