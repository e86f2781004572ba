package doctor

import (
	"context"
	"testing"

	"github.com/basket/recall/internal/config"
)

func TestRunHealthyEnvironment(t *testing.T) {
	cfg := config.Default(t.TempDir())
	d := Run(context.Background(), cfg, "test")

	if !d.Healthy() {
		t.Errorf("fresh environment unhealthy: %+v", d.Results)
	}
	if len(d.Results) != 4 {
		t.Errorf("ran %d checks, want 4", len(d.Results))
	}
	if d.System.OS == "" || d.System.Go == "" {
		t.Error("system info not populated")
	}
}

func TestRunNilConfig(t *testing.T) {
	d := Run(context.Background(), nil, "test")
	if d.Healthy() {
		t.Error("nil config should fail the config check")
	}
	for _, r := range d.Results[1:] {
		if r.Status != "SKIP" {
			t.Errorf("check %s = %s without config, want SKIP", r.Name, r.Status)
		}
	}
}

func TestCheckRetentionBadSchedule(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Store.RetentionSchedule = "not a schedule"

	r := checkRetention(context.Background(), cfg)
	if r.Status != "FAIL" {
		t.Errorf("status = %s for bad schedule, want FAIL", r.Status)
	}
}

func TestCheckConfigInvalidLimits(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Memory.ReserveTokens = cfg.Memory.MaxTokens

	r := checkConfig(context.Background(), cfg)
	if r.Status != "FAIL" {
		t.Errorf("status = %s for bad limits, want FAIL", r.Status)
	}
}
