package v1

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
)

// MetricsOverviewResponse represents the overview response of system metrics.
type MetricsOverviewResponse struct {
	TotalRequests int64                      `json:"total_requests"`
	SuccessRate   float64                    `json:"success_rate"`
	AvgLatencyMs  int64                      `json:"avg_latency_ms"`
	P50LatencyMs  int64                      `json:"p50_latency_ms"`
	P95LatencyMs  int64                      `json:"p95_latency_ms"`
	ErrorCount    int64                      `json:"error_count"`
	PromptTokens  int64                      `json:"prompt_tokens"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Operations    []OperationMetricsResponse `json:"operations"`
}

// OperationMetricsResponse is the per-operation breakdown.
type OperationMetricsResponse struct {
	Operation    string `json:"operation"`
	Count        int64  `json:"count"`
	ErrorCount   int64  `json:"error_count"`
	AvgLatencyMs int64  `json:"avg_latency_ms"`
}

// GetMetricsOverview returns the system metrics overview since process start.
// GET /api/v1/system/metrics/overview
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	if s.Metrics == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "metrics disabled"})
	}

	snapshot := s.Metrics.Snapshot()
	operations := make([]OperationMetricsResponse, 0, len(snapshot.OperationMetrics))
	for name, om := range snapshot.OperationMetrics {
		operations = append(operations, OperationMetricsResponse{
			Operation:    name,
			Count:        om.ExecutionCount,
			ErrorCount:   om.ErrorCount,
			AvgLatencyMs: om.AverageDuration,
		})
	}
	sort.Slice(operations, func(i, j int) bool { return operations[i].Operation < operations[j].Operation })

	return c.JSON(http.StatusOK, MetricsOverviewResponse{
		TotalRequests: snapshot.RequestTotal,
		SuccessRate:   snapshot.SuccessRate(),
		AvgLatencyMs:  snapshot.AvgLatency.Milliseconds(),
		P50LatencyMs:  snapshot.P50Latency.Milliseconds(),
		P95LatencyMs:  snapshot.P95Latency.Milliseconds(),
		ErrorCount:    snapshot.RequestFailed,
		PromptTokens:  snapshot.PromptTokens,
		UptimeSeconds: int64(s.now().Sub(s.startedAt).Seconds()),
		Operations:    operations,
	})
}
