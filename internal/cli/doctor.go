package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/prospectkeeper/keeper/internal/api"
	"github.com/prospectkeeper/keeper/internal/config"
	"github.com/prospectkeeper/keeper/internal/state"
)

type check struct {
	Name   string
	Status string // "ok", "warn", "fail"
	Detail string
}

func NewDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose local setup and backend connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := runChecks(cmd.Context())

			failed := 0
			for _, c := range checks {
				icon := "✓"
				switch c.Status {
				case "warn":
					icon = "!"
				case "fail":
					icon = "✗"
					failed++
				}
				fmt.Printf("%s %-16s %s\n", icon, c.Name, c.Detail)
			}
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func runChecks(ctx context.Context) []check {
	cfg, err := config.Load()
	if err != nil {
		return []check{{Name: "config", Status: "fail", Detail: err.Error()}}
	}

	checks := []check{
		checkConfigFile(),
		checkCredential(),
	}
	checks = append(checks, checkBackend(ctx, cfg)...)
	checks = append(checks, checkArchive(ctx))
	return checks
}

func checkConfigFile() check {
	path := config.GetConfigPath()
	if _, err := os.Stat(path); err != nil {
		return check{Name: "config", Status: "warn", Detail: "not present (defaults in effect)"}
	}
	return check{Name: "config", Status: "ok", Detail: path}
}

func checkCredential() check {
	key, err := api.LoadCredential(api.KeyName)
	if err != nil || strings.TrimSpace(key) == "" {
		return check{Name: "credentials", Status: "fail", Detail: "no API key stored; run keeper auth login"}
	}
	return check{Name: "credentials", Status: "ok", Detail: maskKey(key)}
}

func checkBackend(ctx context.Context, cfg *config.Config) []check {
	client := newAPIClient(cfg)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		return []check{{Name: "backend", Status: "fail", Detail: fmt.Sprintf("unreachable at %s: %v", cfg.API.BaseURL, err)}}
	}
	if health.Status != "ok" {
		detail := health.Error
		if detail == "" {
			detail = "backend reports status " + health.Status
		}
		return []check{{Name: "backend", Status: "fail", Detail: detail}}
	}
	checks := []check{{Name: "backend", Status: "ok", Detail: cfg.API.BaseURL}}

	status, err := client.ConfigStatus(ctx)
	if err != nil {
		return append(checks, check{Name: "integrations", Status: "fail", Detail: err.Error()})
	}
	checks = append(checks, integrationChecks(status)...)
	return checks
}

// integrationChecks maps the backend's integration report onto checks.
// Only the agent credential is fatal; everything else degrades a feature
// rather than the console.
func integrationChecks(status api.ConfigStatus) []check {
	result := func(name string, configured bool, missing string, fatal bool) check {
		if configured {
			return check{Name: name, Status: "ok", Detail: "configured"}
		}
		level := "warn"
		if fatal {
			level = "fail"
		}
		return check{Name: name, Status: level, Detail: missing}
	}
	return []check{
		result("anthropic", status.AnthropicConfigured, "not configured; verification runs cannot start", true),
		result("supabase", status.SupabaseConfigured, "not configured; contact storage is degraded", false),
		result("langfuse", status.LangfuseConfigured, "not configured; agent traces are off", false),
		result("zerobounce", status.ZerobounceConfigured, "not configured; email validation is off", false),
		result("resend", status.ResendConfigured, "not configured; confirmation emails are off", false),
	}
}

func checkArchive(ctx context.Context) check {
	path := defaultStateDBPath()
	db, err := state.Connect(path)
	if err != nil {
		return check{Name: "run archive", Status: "warn", Detail: fmt.Sprintf("cannot open %s: %v", path, err)}
	}
	defer db.Close()
	if _, err := db.ListRuns(ctx, 1); err != nil && !errors.Is(err, state.ErrRunNotFound) {
		return check{Name: "run archive", Status: "warn", Detail: err.Error()}
	}
	return check{Name: "run archive", Status: "ok", Detail: path}
}
