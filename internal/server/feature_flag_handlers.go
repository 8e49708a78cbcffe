package server

import (
	"booking/internal/featureflags"

	"github.com/gofiber/fiber/v2"
)

// FeatureFlagsResponse lists configured flag values and how each one, plus
// every known lifecycle flag, evaluates for the calling trustee.
type FeatureFlagsResponse struct {
	Raw       map[string]string `json:"raw"`
	Evaluated map[string]bool   `json:"evaluated"`
}

// GetFeatureFlags handles GET /api/reports/feature-flags.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID, _ := actor(c)

	flags := s.featureFlags
	if flags == nil {
		flags = featureflags.NewManager("")
	}

	evaluated := flags.Snapshot(userID)
	// Unconfigured flags still show up, as off.
	evaluated[featureflags.ClassifierFailOpen] = flags.Enabled(featureflags.ClassifierFailOpen, userID)

	return c.JSON(FeatureFlagsResponse{Raw: flags.Raw(), Evaluated: evaluated})
}
