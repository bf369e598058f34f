package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"usmleapp/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUserLookup struct {
	user *models.User
	err  error
}

func (s *stubUserLookup) GetUserByID(_ context.Context, _ int) (*models.User, error) {
	return s.user, s.err
}

// newAuthTestRouter wires a minimal router with cookie sessions, a login
// helper that stores arbitrary session values, and a protected endpoint
// that echoes the context identity.
func newAuthTestRouter(users UserLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions("test-session", cookie.NewStore([]byte("test-secret"))))

	r.POST("/login", func(c *gin.Context) {
		session := sessions.Default(c)
		if id := c.Query("id"); id != "" {
			if id == "float" {
				session.Set(UserIDKey, float64(7))
			} else if id == "string" {
				session.Set(UserIDKey, "7")
			} else if id == "zero" {
				session.Set(UserIDKey, 0)
			} else {
				session.Set(UserIDKey, 7)
			}
		}
		if name := c.Query("name"); name != "" {
			session.Set(UsernameKey, name)
		}
		_ = session.Save()
		c.Status(http.StatusOK)
	})

	protected := r.Group("/", RequireAuth())
	protected.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userId":   c.MustGet(UserIDKey),
			"username": c.MustGet(UsernameKey),
		})
	})

	admin := r.Group("/admin", RequireAdmin(users))
	admin.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return r
}

func loginCookies(t *testing.T, r *gin.Engine, query string) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login"+query, nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Result().Cookies()
}

func getWithCookies(r *gin.Engine, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth_NoSession(t *testing.T) {
	r := newAuthTestRouter(&stubUserLookup{})

	w := getWithCookies(r, "/me", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Authentication required","code":"UNAUTHORIZED"}`, w.Body.String())
}

func TestRequireAuth_ValidSession(t *testing.T) {
	r := newAuthTestRouter(&stubUserLookup{})
	cookies := loginCookies(t, r, "?id=7&name=alice")

	w := getWithCookies(r, "/me", cookies)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":7,"username":"alice"}`, w.Body.String())
}

func TestRequireAuth_FloatUserID(t *testing.T) {
	r := newAuthTestRouter(&stubUserLookup{})
	cookies := loginCookies(t, r, "?id=float&name=alice")

	w := getWithCookies(r, "/me", cookies)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":7,"username":"alice"}`, w.Body.String())
}

func TestRequireAuth_FailsClosed(t *testing.T) {
	r := newAuthTestRouter(&stubUserLookup{})

	tests := []struct {
		name  string
		query string
	}{
		{"string user id", "?id=string&name=alice"},
		{"zero user id", "?id=zero&name=alice"},
		{"missing username", "?id=7"},
		{"username only", "?name=alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cookies := loginCookies(t, r, tt.query)
			w := getWithCookies(r, "/me", cookies)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireAdmin_AdminUser(t *testing.T) {
	r := newAuthTestRouter(&stubUserLookup{user: &models.User{ID: 7, Username: "alice", IsAdmin: true}})
	cookies := loginCookies(t, r, "?id=7&name=alice")

	w := getWithCookies(r, "/admin/ping", cookies)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin_NonAdminForbidden(t *testing.T) {
	r := newAuthTestRouter(&stubUserLookup{user: &models.User{ID: 7, Username: "alice"}})
	cookies := loginCookies(t, r, "?id=7&name=alice")

	w := getWithCookies(r, "/admin/ping", cookies)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdmin_LookupError(t *testing.T) {
	r := newAuthTestRouter(&stubUserLookup{err: errors.New("db down")})
	cookies := loginCookies(t, r, "?id=7&name=alice")

	w := getWithCookies(r, "/admin/ping", cookies)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to check admin status","code":"INTERNAL_SERVER_ERROR"}`, w.Body.String())
}

func TestRequireAdmin_NoSession(t *testing.T) {
	r := newAuthTestRouter(&stubUserLookup{user: &models.User{ID: 7, IsAdmin: true}})

	w := getWithCookies(r, "/admin/ping", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
