// ===============================
// FILE: internal/handlers/api/v1/profile/profile_controller.go
// ===============================

package profile

import (
	"net/http"

	"planethero/internal/contextutils"
	"planethero/internal/models"
	"planethero/internal/response"
	"planethero/internal/services"

	"go.uber.org/zap"
)

// ProfileController serves the signed-in user's dashboard and the badge catalog
type ProfileController struct {
	profiles        services.ProfileViewService
	responseBuilder *response.Builder
	logger          *zap.Logger
}

// NewProfileController creates a new profile controller
func NewProfileController(profiles services.ProfileViewService, responseBuilder *response.Builder, logger *zap.Logger) *ProfileController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileController{
		profiles:        profiles,
		responseBuilder: responseBuilder,
		logger:          logger,
	}
}

// GetProfile godoc
// @Summary Current profile
// @Description Points, rank and the badge gallery of the signed-in user
// @Tags profile
// @Produce json
// @Success 200 {object} response.APIResponse{data=services.ProfileView}
// @Failure 401 {object} response.APIResponse
// @Failure 503 {object} response.APIResponse
// @Router /api/v1/profile [get]
func (c *ProfileController) GetProfile(w http.ResponseWriter, r *http.Request) {
	session, ok := contextutils.SessionFrom(r.Context())
	if !ok {
		c.responseBuilder.WriteError(w, r, services.NewUnauthorizedError("Authentication required"))
		return
	}

	view, err := c.profiles.View(r.Context(), session)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	contextutils.GetLogger(r.Context(), c.logger).Debug("Profile served",
		zap.Int64("total_points", view.Profile.TotalPoints),
		zap.Bool("stored", view.HasStoredData),
	)
	c.responseBuilder.WriteSuccess(w, r, view)
}

// ListBadges godoc
// @Summary Badge catalog
// @Tags profile
// @Produce json
// @Success 200 {object} response.APIResponse{data=[]models.BadgeInfo}
// @Router /api/v1/badges [get]
func (c *ProfileController) ListBadges(w http.ResponseWriter, r *http.Request) {
	kinds := models.AllBadgeKinds()
	catalog := make([]models.BadgeInfo, 0, len(kinds))
	for _, kind := range kinds {
		catalog = append(catalog, kind.Display())
	}
	c.responseBuilder.WriteSuccess(w, r, catalog)
}
