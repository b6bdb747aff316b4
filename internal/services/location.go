package services

import (
	"context"
	"time"

	"github.com/desertthunder/voxup/internal/models"
	"github.com/desertthunder/voxup/internal/shared"
)

// StaticLocation reports a fixed, configured origin.
type StaticLocation struct {
	cfg shared.LocationConfig
	now func() time.Time
}

// NewStaticLocation creates a provider from cfg. A disabled config yields no location.
func NewStaticLocation(cfg shared.LocationConfig) *StaticLocation {
	return &StaticLocation{cfg: cfg, now: time.Now}
}

// Location implements [LocationProvider]. The timestamp is taken at call time.
func (s *StaticLocation) Location(context.Context) *models.Location {
	if s == nil || !s.cfg.Enabled {
		return nil
	}
	return &models.Location{
		Latitude:  s.cfg.Latitude,
		Longitude: s.cfg.Longitude,
		City:      s.cfg.City,
		Region:    s.cfg.Region,
		Country:   s.cfg.Country,
		Timestamp: s.now().UnixMilli(),
	}
}
