package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"example/comment-search-api/logging"
)

func TestRequestLoggerSetsRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestLogger(logging.Discard()))
	router.GET("/ping", func(c *gin.Context) {
		id, _ := c.Get("request_id")
		c.String(http.StatusOK, id.(string))
	})

	t.Run("generated", func(t *testing.T) {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ping", nil))
		id := resp.Header().Get(requestIDHeader)
		if id == "" || resp.Body.String() != id {
			t.Fatalf("request id header %q, body %q", id, resp.Body.String())
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if got := resp.Header().Get(requestIDHeader); got != "abc-123" {
			t.Fatalf("request id = %q, want abc-123", got)
		}
	})
}

func TestWithQuery(t *testing.T) {
	cases := []struct {
		base, key, value, want string
	}{
		{"http://localhost:3000/auth/success", "token", "a.b.c", "http://localhost:3000/auth/success?token=a.b.c"},
		{"https://app.test/", "error", "auth_failed", "https://app.test/?error=auth_failed"},
		{"https://app.test/x?keep=1", "token", "t", "https://app.test/x?keep=1&token=t"},
	}
	for _, tc := range cases {
		if got := withQuery(tc.base, tc.key, tc.value); got != tc.want {
			t.Fatalf("withQuery(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}
}
