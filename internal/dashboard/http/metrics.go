package http

import (
	"net/http"
	"strconv"

	"github.com/parlourtech/whopdash/internal/dashboard/domain"
	"github.com/parlourtech/whopdash/internal/dashboard/service"
	"github.com/parlourtech/whopdash/pkg/httpx"
	"github.com/parlourtech/whopdash/pkg/slogx"
)

// MetricResponse is one daily snapshot in API form.
type MetricResponse struct {
	Day           string `json:"day"`
	ActiveMembers int    `json:"activeMembers"`
	RevenueCents  int64  `json:"revenueCents"`
}

// MetricsListResponse wraps the snapshots for one tenant.
type MetricsListResponse struct {
	TenantID string           `json:"companyId"`
	Metrics  []MetricResponse `json:"metrics"`
}

// MetricsListHandler serves GET /v1/metrics for the session's tenant.
type MetricsListHandler struct {
	Metrics *service.MetricsService
}

// ServeHTTP godoc
//
//	@Summary		List Daily Metrics
//	@Description	Returns the authenticated company's stored daily activity snapshots, newest first.
//	@Tags			Metrics
//	@Produce		json
//	@Param			limit	query		int					false	"Maximum days to return (default 30)"
//	@Success		200		{object}	MetricsListResponse	"companyId, metrics"
//	@Failure		401		{object}	ErrorResponse		"error, error_description"
//	@Security		BearerAuth
//	@Router			/v1/metrics [get].
func (h *MetricsListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, _ := ctx.Value(httpx.CtxKeyTenantID).(string)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	metrics, err := h.Metrics.ListForTenant(ctx, tenantID, limit)
	if err != nil {
		slogx.FromContext(ctx).Error("metrics list failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "server_error", "storage unavailable")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, MetricsListResponse{
		TenantID: tenantID,
		Metrics:  toMetricResponses(metrics),
	})
}

// MetricsSyncHandler serves POST /v1/metrics/sync, pulling a fresh snapshot
// from the platform for the session's tenant.
type MetricsSyncHandler struct {
	Metrics *service.MetricsService
}

// ServeHTTP godoc
//
//	@Summary		Sync Today's Metrics
//	@Description	Pulls the company's current activity snapshot from the platform and stores it
//	@Description	as today's metric, replacing any earlier pull from the same day.
//	@Tags			Metrics
//	@Produce		json
//	@Success		200	{object}	MetricResponse	"day, activeMembers, revenueCents"
//	@Failure		401	{object}	ErrorResponse	"error, error_description"
//	@Failure		502	{object}	ErrorResponse	"error, error_description"
//	@Security		BearerAuth
//	@Router			/v1/metrics/sync [post].
func (h *MetricsSyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, _ := ctx.Value(httpx.CtxKeyTenantID).(string)

	metric, err := h.Metrics.SyncToday(ctx, tenantID)
	if err != nil {
		slogx.FromContext(ctx).Error("metrics sync failed", "error", err)
		writeError(w, http.StatusBadGateway, "sync_failed",
			"could not pull metrics from the platform")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, MetricResponse{
		Day:           metric.Day,
		ActiveMembers: metric.ActiveMembers,
		RevenueCents:  metric.RevenueCents,
	})
}

func toMetricResponses(metrics []domain.DailyMetric) []MetricResponse {
	out := make([]MetricResponse, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, MetricResponse{
			Day:           m.Day,
			ActiveMembers: m.ActiveMembers,
			RevenueCents:  m.RevenueCents,
		})
	}
	return out
}
