package clientip_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/authcore/pkg/clientip"
)

func TestGetIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		trust   bool
		want    string
	}{
		{"remote addr", "192.0.2.10:5123", nil, false, "192.0.2.10"},
		{"remote ipv6", "[2001:db8::1]:443", nil, false, "2001:db8::1"},
		{"mapped ipv4", "[::ffff:192.0.2.7]:80", nil, false, "192.0.2.7"},
		{"headers ignored when untrusted", "192.0.2.10:5123", map[string]string{"X-Forwarded-For": "203.0.113.9"}, false, "192.0.2.10"},
		{"forwarded first hop", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2"}, true, "203.0.113.9"},
		{"skips garbage hop", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "unknown, 203.0.113.9"}, true, "203.0.113.9"},
		{"cloudflare wins", "10.0.0.1:80", map[string]string{"CF-Connecting-IP": "198.51.100.4", "X-Real-IP": "203.0.113.9"}, true, "198.51.100.4"},
		{"real ip", "10.0.0.1:80", map[string]string{"X-Real-IP": "203.0.113.9"}, true, "203.0.113.9"},
		{"invalid header falls back", "10.0.0.1:80", map[string]string{"X-Real-IP": "nope"}, true, "10.0.0.1"},
		{"bare remote", "192.0.2.10", nil, false, "192.0.2.10"},
		{"unparseable", "pipe", nil, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientip.GetIP(r, tt.trust))
		})
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var seen string
	h := clientip.Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = clientip.FromContext(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "203.0.113.9", seen)
}
