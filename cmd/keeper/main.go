package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/prospectkeeper/keeper/internal/api"
	keepercli "github.com/prospectkeeper/keeper/internal/cli"
	"github.com/prospectkeeper/keeper/internal/config"
	"github.com/prospectkeeper/keeper/internal/logging"
	"github.com/prospectkeeper/keeper/internal/state"
	"github.com/prospectkeeper/keeper/internal/tui"
)

type runtimeDeps struct {
	ctx        context.Context
	cancel     context.CancelFunc
	db         *state.DB
	client     *api.Client
	cfgUpdates <-chan *config.Config
	logCloser  io.Closer
}

func (r *runtimeDeps) Close() {
	if r == nil {
		return
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.db != nil {
		_ = r.db.Close()
	}
	if r.logCloser != nil {
		_ = r.logCloser.Close()
	}
}

func restoreTerminalState() {
	fmt.Fprint(os.Stderr, "\x1b[?25h\x1b[0m")
}

func defaultArchivePath() string {
	return filepath.Join(filepath.Dir(config.GetConfigPath()), "keeper.db")
}

func bootstrapRuntime(cfg *config.Config, archivePath string) (*runtimeDeps, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	rt := &runtimeDeps{}
	rt.ctx, rt.cancel = context.WithCancel(context.Background())

	// Stdout and stderr belong to the TUI; logs go to a file or nowhere.
	logCloser, err := logging.SetupTUI(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.logCloser = logCloser

	db, err := state.Connect(archivePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: run archive unavailable, transcripts will not be kept: %v\n", err)
	} else {
		rt.db = db
	}

	rt.client = api.NewClient(cfg.API.BaseURL)
	if t := cfg.APITimeout(); t > 0 {
		rt.client.HTTP.Timeout = t
	}

	cfgUpdates, err := config.Watch(rt.ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: config reload disabled: %v\n", err)
	} else {
		rt.cfgUpdates = cfgUpdates
	}

	return rt, nil
}

func main() {
	var archivePath string

	rootCmd := &cobra.Command{
		Use:   "keeper",
		Short: "Console for the prospect verification backend",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "info"
			if cfg, err := config.Load(); err == nil {
				level = cfg.Log.Level
			}
			logging.Setup(level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			rt, err := bootstrapRuntime(cfg, archivePath)
			if err != nil {
				return err
			}
			defer rt.Close()

			app := tui.NewAppModel(cfg, rt.client, rt.db, rt.cfgUpdates)
			p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(rt.ctx))
			_, err = p.Run()
			return err
		},
	}

	rootCmd.Flags().StringVar(&archivePath, "db", defaultArchivePath(), "Path to the run archive database")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := config.Load()
			return config.RunConfigForm(cfg)
		},
	}

	rootCmd.AddCommand(
		configCmd,
		keepercli.NewAuthCmd(),
		keepercli.NewContactsCmd(),
		keepercli.NewReviewCmd(),
		keepercli.NewVerifyCmd(),
		keepercli.NewSessionsCmd(),
		keepercli.NewEmailCmd(),
		keepercli.NewDoctorCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		restoreTerminalState()
		os.Exit(1)
	}
	restoreTerminalState()
}
