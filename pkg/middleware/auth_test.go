package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgjwt "github.com/weiawesome/wes-io-live/pkg/jwt"
)

func newTestRouter(t *testing.T) (*gin.Engine, *pkgjwt.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := pkgjwt.NewManager("secret", "test", time.Minute)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", NewAuthMiddleware(m).RequireAuth(), func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, actor.ID+"/"+actor.Username)
	})
	return r, m
}

func TestRequireAuth(t *testing.T) {
	r, m := newTestRouter(t)
	token, _, err := m.GenerateAccessToken("u-1", "alice")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc", status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + token, status: http.StatusOK, body: "u-1/alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}
