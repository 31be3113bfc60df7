// Package health provides health checking functionality for the interactions API.
package health

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/giygas/interactions-api/interfaces"
	"github.com/giygas/interactions-api/logging"
)

// Compile-time check to ensure HealthCheckerImpl implements HealthChecker
var _ interfaces.HealthChecker = (*HealthCheckerImpl)(nil)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	store      interfaces.InteractionStore
	refresh    interfaces.RefreshStatus
	staleAfter time.Duration
	startTime  time.Time
	now        func() time.Time
}

// NewHealthChecker creates a new health checker with injected dependencies.
// A refresh older than staleAfter reports the service as degraded.
func NewHealthChecker(store interfaces.InteractionStore, refresh interfaces.RefreshStatus, staleAfter time.Duration) *HealthCheckerImpl {
	return &HealthCheckerImpl{
		store:      store,
		refresh:    refresh,
		staleAfter: staleAfter,
		startTime:  time.Now(),
		now:        time.Now,
	}
}

// HealthCheck returns the health status, its details and the HTTP status for /health.
// The store must answer; an old or entirely failed refresh only degrades the service,
// because cached rows and on-demand computation keep working.
func (h *HealthCheckerImpl) HealthCheck(ctx context.Context) (status string, data map[string]any, httpStatus int) {
	now := h.now()
	data = map[string]any{
		"uptime_hours":  math.Round(now.Sub(h.startTime).Hours()*10) / 10,
		"is_refreshing": h.refresh.IsRefreshing(),
	}

	if next := h.refresh.NextRun(); !next.IsZero() {
		data["next_refresh"] = next.Format(time.RFC3339)
	}

	rows, err := h.store.CountInteractions(ctx)
	if err != nil {
		logging.Warn("Health check could not reach the store", "error", err)
		data["store"] = "unreachable"
		return "unhealthy", data, http.StatusServiceUnavailable
	}
	data["store"] = "ok"
	data["cached_rows"] = rows

	report, ok := h.refresh.LastReport()
	if !ok {
		return "healthy", data, http.StatusOK
	}

	refreshAge := now.Sub(report.StartedAt)
	data["last_refresh"] = report.StartedAt.Format(time.RFC3339)
	data["last_refresh_age_hours"] = math.Round(refreshAge.Hours()*10) / 10
	data["last_refresh_failed_keys"] = report.Failed

	switch {
	case report.Total > 0 && report.Refreshed == 0:
		status = "degraded"
	case h.staleAfter > 0 && refreshAge > h.staleAfter:
		status = "degraded"
	default:
		status = "healthy"
	}

	return status, data, http.StatusOK
}
