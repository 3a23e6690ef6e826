package requestid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authcore/pkg/requestid"
)

func serve(t *testing.T, header string) (seen string, rec *httptest.ResponseRecorder) {
	t.Helper()
	h := requestid.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestid.FromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(requestid.Header, header)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return seen, rec
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("generates id", func(t *testing.T) {
		t.Parallel()
		seen, rec := serve(t, "")
		_, err := uuid.Parse(seen)
		require.NoError(t, err)
		assert.Equal(t, seen, rec.Header().Get(requestid.Header))
	})

	t.Run("reuses client id", func(t *testing.T) {
		t.Parallel()
		seen, rec := serve(t, "edge-7f3a_01")
		assert.Equal(t, "edge-7f3a_01", seen)
		assert.Equal(t, "edge-7f3a_01", rec.Header().Get(requestid.Header))
	})

	for _, bad := range []string{"a b", "a/b", "<script>", strings.Repeat("x", 129)} {
		t.Run("replaces "+bad[:min(len(bad), 8)], func(t *testing.T) {
			t.Parallel()
			seen, _ := serve(t, bad)
			assert.NotEqual(t, bad, seen)
			assert.NotEmpty(t, seen)
		})
	}
}

func TestLogExtractor(t *testing.T) {
	t.Parallel()

	_, ok := requestid.LogExtractor()(context.Background())
	assert.False(t, ok)

	attr, ok := requestid.LogExtractor()(requestid.WithContext(context.Background(), "abc"))
	require.True(t, ok)
	assert.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "abc", attr.Value.String())
}
