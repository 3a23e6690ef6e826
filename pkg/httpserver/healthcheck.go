package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/authcore/pkg/logger"
)

// Check is a named readiness probe such as a database ping.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessHandler answers 200 while the process can serve HTTP.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, healthReport{Status: "alive"})
	}
}

// ReadinessHandler runs every check concurrently, each bounded by timeout,
// and answers 503 if any fails. Failures are logged; the body names the
// failing checks but never carries error text.
func ReadinessHandler(log *slog.Logger, timeout time.Duration, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		report := healthReport{Status: "ready", Checks: make(map[string]string, len(checks))}
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, c := range checks {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result := "ok"
				if err := c.Fn(ctx); err != nil {
					result = "failing"
					log.ErrorContext(ctx, "readiness check failed",
						logger.Component("health"),
						slog.String("check", c.Name),
						logger.Error(err),
					)
				}
				mu.Lock()
				report.Checks[c.Name] = result
				mu.Unlock()
			}()
		}
		wg.Wait()

		status := http.StatusOK
		for _, result := range report.Checks {
			if result != "ok" {
				report.Status = "not_ready"
				status = http.StatusServiceUnavailable
				break
			}
		}
		writeHealth(w, status, report)
	}
}

func writeHealth(w http.ResponseWriter, status int, report healthReport) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}
