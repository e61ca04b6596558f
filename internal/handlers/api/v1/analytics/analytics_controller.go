// ===============================
// FILE: internal/handlers/api/v1/analytics/analytics_controller.go
// ===============================

package analytics

import (
	"context"
	"net/http"
	"time"

	"planethero/internal/contextutils"
	"planethero/internal/response"
	"planethero/internal/services"

	"go.uber.org/zap"
)

// AnalyticsController serves class statistics to teachers
type AnalyticsController struct {
	analytics       services.AnalyticsService
	responseBuilder *response.Builder
	logger          *zap.Logger
}

// NewAnalyticsController creates a new analytics controller
func NewAnalyticsController(analytics services.AnalyticsService, responseBuilder *response.Builder, logger *zap.Logger) *AnalyticsController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsController{
		analytics:       analytics,
		responseBuilder: responseBuilder,
		logger:          logger,
	}
}

// ClassSummary godoc
// @Summary Class analytics
// @Description Student count, points, badge holders and the top students
// @Tags analytics
// @Produce json
// @Success 200 {object} response.APIResponse{data=services.ClassSummary}
// @Failure 401 {object} response.APIResponse
// @Failure 403 {object} response.APIResponse
// @Failure 503 {object} response.APIResponse
// @Router /api/v1/analytics/class [get]
func (c *AnalyticsController) ClassSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	summary, err := c.analytics.ClassSummary(ctx)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	contextutils.GetLogger(r.Context(), c.logger).Debug("Class summary served",
		zap.Int("students", summary.StudentCount))
	c.responseBuilder.WriteSuccess(w, r, summary)
}
