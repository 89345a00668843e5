package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/localchat/internal/profile"
	"github.com/hrygo/localchat/server/internal/observability"
)

// APIV1Service serves the read-only operational endpoints under /api/v1.
type APIV1Service struct {
	Profile *profile.Profile
	Metrics *observability.Metrics
	// Backend is the active inference engine name.
	Backend string

	startedAt time.Time
	now       func() time.Time
}

func NewAPIV1Service(profile *profile.Profile, metrics *observability.Metrics, backend string) *APIV1Service {
	return &APIV1Service{
		Profile:   profile,
		Metrics:   metrics,
		Backend:   backend,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// RegisterRoutes mounts the v1 endpoints on the echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/instance/profile", s.GetInstanceProfile)
	g.GET("/system/metrics/overview", s.GetMetricsOverview)
}

// InstanceProfileResponse describes the running instance.
type InstanceProfileResponse struct {
	Version          string `json:"version"`
	Mode             string `json:"mode"`
	Model            string `json:"model"`
	Backend          string `json:"backend"`
	Driver           string `json:"driver"`
	MaxHistoryLength int    `json:"max_history_length"`
	TokenBudget      int    `json:"max_input_token_budget"`
}

// GetInstanceProfile returns the instance profile.
// GET /api/v1/instance/profile
func (s *APIV1Service) GetInstanceProfile(c echo.Context) error {
	return c.JSON(http.StatusOK, InstanceProfileResponse{
		Version:          s.Profile.Version,
		Mode:             s.Profile.Mode,
		Model:            s.Profile.ModelName,
		Backend:          s.Backend,
		Driver:           s.Profile.Driver,
		MaxHistoryLength: s.Profile.MaxHistoryLength,
		TokenBudget:      s.Profile.MaxInputTokenBudget,
	})
}
