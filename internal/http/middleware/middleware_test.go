package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type orgChecker struct {
	active map[uuid.UUID]bool
	err    error
}

func (c *orgChecker) IsActive(_ context.Context, orgID uuid.UUID) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return c.active[orgID], nil
}

func withUser(user *auth.UserContext, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(auth.WithUserContext(r.Context(), user)))
	})
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) domain.ErrorResponse {
	t.Helper()
	var body domain.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestTenantGuard(t *testing.T) {
	activeOrg, inactiveOrg := uuid.New(), uuid.New()
	checker := &orgChecker{active: map[uuid.UUID]bool{activeOrg: true, inactiveOrg: false}}
	guard := middleware.NewTenantGuard(checker, zap.NewNop())

	tests := []struct {
		name   string
		user   *auth.UserContext
		guard  *middleware.TenantGuard
		status int
	}{
		{"active org passes", &auth.UserContext{OrgID: activeOrg, ProfileID: uuid.New()}, guard, http.StatusOK},
		{"inactive org is forbidden", &auth.UserContext{OrgID: inactiveOrg, ProfileID: uuid.New()}, guard, http.StatusForbidden},
		{"unknown org is forbidden", &auth.UserContext{OrgID: uuid.New(), ProfileID: uuid.New()}, guard, http.StatusForbidden},
		{"lookup failure", &auth.UserContext{OrgID: activeOrg}, middleware.NewTenantGuard(&orgChecker{err: errors.New("db down")}, zap.NewNop()), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			withUser(tt.user, tt.guard.Require(okHandler)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/opportunities", nil))
			assert.Equal(t, tt.status, rr.Code)
		})
	}

	t.Run("no user context", func(t *testing.T) {
		rr := httptest.NewRecorder()
		guard.Require(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/opportunities", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.True(t, decodeError(t, rr).Error)
	})
}

func TestRecoverer(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := middleware.Recoverer(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/goals", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", decodeError(t, rr).Message)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "panic serving request", logs.All()[0].Message)
}

func TestLogging_RequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := middleware.Logging(zap.New(core))(okHandler)

	t.Run("generated", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		_, err := uuid.Parse(rr.Header().Get(middleware.RequestIDHeader))
		assert.NoError(t, err)
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(middleware.RequestIDHeader, "req-123")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, "req-123", rr.Header().Get(middleware.RequestIDHeader))
	})

	assert.Equal(t, 2, logs.Len())
}

func TestLogging_Tenant(t *testing.T) {
	user := &auth.UserContext{OrgID: uuid.New(), ProfileID: uuid.New(), AuthType: auth.AuthTypeJWT}

	t.Run("caller set further down the chain is logged", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		h := middleware.Logging(zap.New(core))(withUser(user, okHandler))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/goals", nil))

		require.Equal(t, 1, logs.Len())
		fields := logs.All()[0].ContextMap()
		assert.Equal(t, user.OrgID.String(), fields["org_id"])
		assert.Equal(t, user.ProfileID.String(), fields["profile_id"])
	})

	t.Run("anonymous request has no tenant", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		middleware.Logging(zap.New(core))(okHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, 1, logs.Len())
		assert.NotContains(t, logs.All()[0].ContextMap(), "org_id")
	})
}

func TestCORS(t *testing.T) {
	cfg := &config.CORSConfig{
		AllowedOrigins: []string{"https://app.example.com"},
		AllowedMethods: []string{http.MethodGet},
	}

	request := func(h http.Handler, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/goals/leaderboard/export", nil)
		req.Header.Set("Origin", origin)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	t.Run("request id and export filename are exposed", func(t *testing.T) {
		rr := request(middleware.CORS(cfg, "production", zap.NewNop())(okHandler), "https://app.example.com")
		assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
		exposed := strings.ToLower(rr.Header().Get("Access-Control-Expose-Headers"))
		assert.Contains(t, exposed, "x-request-id")
		assert.Contains(t, exposed, "content-disposition")
	})

	t.Run("unlisted origin", func(t *testing.T) {
		rr := request(middleware.CORS(cfg, "production", zap.NewNop())(okHandler), "https://evil.example.com")
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("no origins outside development denies all", func(t *testing.T) {
		rr := request(middleware.CORS(&config.CORSConfig{}, "production", zap.NewNop())(okHandler), "https://app.example.com")
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("no origins in development allows any", func(t *testing.T) {
		rr := request(middleware.CORS(&config.CORSConfig{}, "development", zap.NewNop())(okHandler), "http://localhost:5173")
		assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestAudit(t *testing.T) {
	user := &auth.UserContext{OrgID: uuid.New(), ProfileID: uuid.New(), AuthType: auth.AuthTypeJWT}

	newRouter := func(status int) (http.Handler, *observer.ObservedLogs) {
		core, logs := observer.New(zapcore.InfoLevel)
		audit := middleware.NewAuditMiddleware(nil, zap.New(core))
		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler { return withUser(user, next) })
		r.Use(audit.Audit)
		respond := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(status) }
		r.Post("/api/v1/opportunities", respond)
		r.Get("/api/v1/opportunities/{id}", respond)
		r.Delete("/api/v1/opportunities/{id}/line-items/{itemId}", respond)
		return r, logs
	}

	t.Run("successful mutation is logged with entity", func(t *testing.T) {
		h, logs := newRouter(http.StatusNoContent)
		oppID, itemID := uuid.NewString(), uuid.NewString()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/v1/opportunities/"+oppID+"/line-items/"+itemID, nil))

		require.Equal(t, 1, logs.Len())
		fields := logs.All()[0].ContextMap()
		assert.Equal(t, "delete", fields["action"])
		assert.Equal(t, "line-items", fields["entity_type"])
		assert.Equal(t, itemID, fields["entity_id"])
		assert.Equal(t, user.OrgID.String(), fields["org_id"])
	})

	t.Run("create has no entity id", func(t *testing.T) {
		h, logs := newRouter(http.StatusCreated)
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/opportunities", nil))

		require.Equal(t, 1, logs.Len())
		fields := logs.All()[0].ContextMap()
		assert.Equal(t, "create", fields["action"])
		assert.Equal(t, "opportunities", fields["entity_type"])
		assert.Equal(t, "", fields["entity_id"])
	})

	t.Run("failed mutation is not logged", func(t *testing.T) {
		h, logs := newRouter(http.StatusBadRequest)
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/opportunities", nil))
		assert.Equal(t, 0, logs.Len())
	})

	t.Run("reads are skipped", func(t *testing.T) {
		h, logs := newRouter(http.StatusOK)
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/opportunities/"+uuid.NewString(), nil))
		assert.Equal(t, 0, logs.Len())
	})
}
