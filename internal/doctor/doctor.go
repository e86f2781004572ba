// Package doctor runs environment diagnostics for the memory engine:
// config validity, data directory permissions, content database health,
// and the retention schedule.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/basket/recall/internal/config"
	"github.com/basket/recall/internal/contentstore"
)

type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "PASS", "FAIL", "WARN", "SKIP"
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type Diagnosis struct {
	Timestamp time.Time     `json:"timestamp"`
	System    SystemInfo    `json:"system"`
	Results   []CheckResult `json:"results"`
}

type SystemInfo struct {
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	Go      string `json:"go_version"`
	Version string `json:"version"`
}

// Run executes all diagnostic checks.
func Run(ctx context.Context, cfg *config.Config, version string) Diagnosis {
	d := Diagnosis{
		Timestamp: time.Now().UTC(),
		System: SystemInfo{
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
			Go:      runtime.Version(),
			Version: version,
		},
	}

	checks := []func(context.Context, *config.Config) CheckResult{
		checkConfig,
		checkPermissions,
		checkDatabase,
		checkRetention,
	}

	for _, check := range checks {
		d.Results = append(d.Results, check(ctx, cfg))
	}

	return d
}

// Healthy reports whether no check failed.
func (d Diagnosis) Healthy() bool {
	for _, r := range d.Results {
		if r.Status == "FAIL" {
			return false
		}
	}
	return true
}

func checkConfig(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Config", Status: "FAIL", Message: "Configuration not loaded"}
	}
	if err := cfg.Validate(); err != nil {
		return CheckResult{Name: "Config", Status: "FAIL", Message: fmt.Sprintf("Invalid: %v", err)}
	}
	return CheckResult{
		Name:    "Config",
		Status:  "PASS",
		Message: fmt.Sprintf("Loaded from %s", cfg.HomeDir()),
		Detail: fmt.Sprintf("model=%s, max_tokens=%d, reserve_tokens=%d, threshold=%dB",
			cfg.Memory.Model, cfg.Memory.MaxTokens, cfg.Memory.ReserveTokens, cfg.Store.ThresholdBytes),
	}
}

func checkPermissions(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Permissions", Status: "SKIP", Message: "Config missing"}
	}

	testFile := filepath.Join(cfg.HomeDir(), ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return CheckResult{Name: "Permissions", Status: "FAIL", Message: fmt.Sprintf("Home dir unwritable: %v", err)}
	}
	os.Remove(testFile)

	return CheckResult{Name: "Permissions", Status: "PASS", Message: "Home directory writable"}
}

func checkDatabase(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Database", Status: "SKIP", Message: "Config missing"}
	}

	store, err := contentstore.New(contentstore.Config{
		Path:           cfg.Store.Path,
		ThresholdBytes: cfg.Store.ThresholdBytes,
		PreviewChars:   cfg.Store.PreviewChars,
	}, nil)
	if err != nil {
		return CheckResult{Name: "Database", Status: "FAIL", Message: fmt.Sprintf("Open failed: %v", err)}
	}
	defer store.Close()

	stats, err := store.GetStats(ctx)
	if err != nil {
		return CheckResult{Name: "Database", Status: "FAIL", Message: fmt.Sprintf("Query failed: %v", err)}
	}

	return CheckResult{
		Name:    "Database",
		Status:  "PASS",
		Message: "Connection and schema valid",
		Detail:  fmt.Sprintf("%d blobs, %s stored", stats.Count, contentstore.FormatSize(int(stats.TotalBytes))),
	}
}

func checkRetention(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Retention", Status: "SKIP", Message: "Config missing"}
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(cfg.Store.RetentionSchedule); err != nil {
		return CheckResult{
			Name:    "Retention",
			Status:  "FAIL",
			Message: fmt.Sprintf("Bad schedule %q: %v", cfg.Store.RetentionSchedule, err),
		}
	}
	if cfg.Store.RetentionMaxAgeHours < 1 {
		return CheckResult{
			Name:    "Retention",
			Status:  "WARN",
			Message: fmt.Sprintf("Max age %dh expires content aggressively", cfg.Store.RetentionMaxAgeHours),
		}
	}
	return CheckResult{
		Name:    "Retention",
		Status:  "PASS",
		Message: fmt.Sprintf("Schedule %q, max age %dh", cfg.Store.RetentionSchedule, cfg.Store.RetentionMaxAgeHours),
	}
}
