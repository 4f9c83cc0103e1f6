package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/prospectkeeper/keeper/internal/config"
	"github.com/prospectkeeper/keeper/internal/session"
	"github.com/prospectkeeper/keeper/internal/state"
	"github.com/prospectkeeper/keeper/internal/stream"
)

func NewVerifyCmd() *cobra.Command {
	var dbPath string
	var noArchive bool

	verifyCmd := &cobra.Command{
		Use:   "verify <contact-id>",
		Short: "Run the verification agent for a contact and stream its progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)

			contact, err := findContact(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}

			runCtx, cancel := context.WithTimeout(cmd.Context(), cfg.VerifyTimeout())
			defer cancel()
			runCtx, stop := signal.NotifyContext(runCtx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			ctrl := session.NewController(client, contact.ID)
			updates, err := ctrl.Start(runCtx)
			if err != nil {
				return err
			}

			fmt.Printf("Verifying %s (%s)...\n", contact.Name, shortID(contact.ID))
			for update := range updates {
				if update.Event != nil {
					fmt.Println(renderEventLine(*update.Event))
				}
			}

			outcome := ctrl.Verdict()
			fmt.Println()
			fmt.Printf("Verdict: %s\n", outcome.Label)
			if outcome.Detail != "" {
				fmt.Printf("Detail: %s\n", outcome.Detail)
			}
			fmt.Printf("State: %s (%s elapsed)\n", ctrl.State(), ctrl.Elapsed())

			if !noArchive {
				// The run context may already be expired; archive on the
				// command's own context.
				archiveRun(cmd.Context(), dbPath, ctrl, contact.Name)
			}

			if ctrl.State() == session.StateErrored {
				return errors.New("verification ended in an error")
			}
			return nil
		},
	}
	verifyCmd.Flags().StringVar(&dbPath, "db", defaultStateDBPath(), "Path to the run archive database")
	verifyCmd.Flags().BoolVar(&noArchive, "no-archive", false, "Skip archiving the run transcript")
	return verifyCmd
}

// archiveRun stores a finished run's transcript. Archive failures are
// logged, never fatal: the verdict has already been shown.
func archiveRun(ctx context.Context, dbPath string, ctrl *session.Controller, contactName string) {
	db, err := state.Connect(dbPath)
	if err != nil {
		log.Warn().Err(err).Str("db", dbPath).Msg("run archive unavailable")
		return
	}
	defer db.Close()

	outcome := ctrl.Verdict()
	run := state.Run{
		ContactID:   ctrl.ContactID(),
		ContactName: contactName,
		State:       string(ctrl.State()),
		Verdict:     string(outcome.Verdict),
		Detail:      outcome.Detail,
		Elapsed:     ctrl.Elapsed(),
		StartedAt:   ctrl.StartedAt().UTC(),
		FinishedAt:  time.Now().UTC(),
	}
	id, err := db.SaveRun(ctx, run, ctrl.Events())
	if err != nil {
		log.Warn().Err(err).Msg("archive run")
		return
	}
	fmt.Printf("Archived run %s.\n", shortID(id))
}

func renderEventLine(event stream.AgentEvent) string {
	ts := event.At.Local().Format("15:04:05")
	switch event.Type {
	case stream.EventStart:
		name := ""
		if event.Contact != nil {
			name = event.Contact.Name
		}
		return fmt.Sprintf("%s  start     %s", ts, name)
	case stream.EventThinking:
		return fmt.Sprintf("%s  thinking  %s", ts, event.Text)
	case stream.EventToolCall:
		return fmt.Sprintf("%s  tool      %s %s", ts, event.Name, compactJSON(event.Input))
	case stream.EventToolResult:
		label := "result"
		if event.Outcome().Failed() {
			label = "failed"
		}
		return fmt.Sprintf("%s  %s    %s %s", ts, label, event.Name, compactJSON(event.Result))
	case stream.EventFinal:
		return fmt.Sprintf("%s  final     %s", ts, event.Text)
	case stream.EventError:
		return fmt.Sprintf("%s  error     %s", ts, event.Message)
	case stream.EventDone:
		return fmt.Sprintf("%s  done", ts)
	default:
		return fmt.Sprintf("%s  %s", ts, event.Type)
	}
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
