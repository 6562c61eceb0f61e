package services

import (
	"context"
	"errors"

	"github.com/lylaw27/glaze-store/internal/repositories"
)

type systemService struct {
	health repositories.HealthRepository
}

// NewSystemService wraps the dependency health repository.
func NewSystemService(health repositories.HealthRepository) (SystemService, error) {
	if health == nil {
		return nil, errors.New("system service: health repository is required")
	}
	return &systemService{health: health}, nil
}

func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	return s.health.Collect(ctx)
}
