package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/lylaw27/glaze-store/internal/domain"
)

func TestDependencyHealthRepositoryAllHealthy(t *testing.T) {
	now := time.Date(2025, time.May, 4, 9, 30, 0, 0, time.UTC)
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "database", Check: func(context.Context) error { return nil }},
		{Name: "redis", Check: func(context.Context) error { return nil }},
	}, WithDependencyClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusOK || len(report.Checks) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Checks["database"].CheckedAt != now || report.Checks["database"].Detail != "ok" {
		t.Fatalf("unexpected database check %+v", report.Checks["database"])
	}
}

func TestDependencyHealthRepositoryFailingCheck(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "database", Check: func(context.Context) error { return errors.New("connection refused") }},
		{Name: "storage", Check: func(context.Context) error { return nil }},
	})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected error status, got %s", report.Status)
	}
	db := report.Checks["database"]
	if db.Detail != "unavailable" || db.Error != "connection refused" {
		t.Fatalf("unexpected database check %+v", db)
	}
	if report.Checks["storage"].Status != domain.HealthStatusOK {
		t.Fatalf("expected storage ok, got %s", report.Checks["storage"].Status)
	}
}

func TestDependencyHealthRepositoryTimeout(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{{
		Name:    "database",
		Timeout: 10 * time.Millisecond,
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if check := report.Checks["database"]; check.Status != domain.HealthStatusError || check.Detail != "timeout" {
		t.Fatalf("expected timeout, got %+v", check)
	}
}

func TestNewDependencyHealthRepositoryValidation(t *testing.T) {
	if _, err := NewDependencyHealthRepository(nil); err == nil {
		t.Fatal("expected error for empty checks")
	}
	if _, err := NewDependencyHealthRepository([]DependencyCheck{{Name: " ", Check: func(context.Context) error { return nil }}}); err == nil {
		t.Fatal("expected error for blank name")
	}
	if _, err := NewDependencyHealthRepository([]DependencyCheck{{Name: "database"}}); err == nil {
		t.Fatal("expected error for missing check")
	}
}
