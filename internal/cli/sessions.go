package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/prospectkeeper/keeper/internal/state"
)

func NewSessionsCmd() *cobra.Command {
	var dbPath string

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Browse archived verification runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(cmd.Context(), dbPath)
		},
	}
	sessionsCmd.PersistentFlags().StringVar(&dbPath, "db", defaultStateDBPath(), "Path to the run archive database")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(cmd.Context(), dbPath)
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Replay an archived run's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := state.Connect(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			run, err := db.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			events, err := db.GetRunEvents(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			fmt.Printf("Run: %s\n", run.ID)
			fmt.Printf("Contact: %s (%s)\n", run.ContactName, shortID(run.ContactID))
			fmt.Printf("State: %s\n", run.State)
			fmt.Printf("Verdict: %s\n", orDash(run.Verdict))
			if run.Detail != "" {
				fmt.Printf("Detail: %s\n", run.Detail)
			}
			fmt.Printf("Elapsed: %s\n", run.Elapsed)
			fmt.Println()
			for _, re := range events {
				event, err := re.Event()
				if err != nil {
					fmt.Printf("(unreadable event %d)\n", re.Seq)
					continue
				}
				fmt.Println(renderEventLine(event))
			}
			return nil
		},
	}

	sessionsCmd.AddCommand(listCmd, showCmd)
	return sessionsCmd
}

func runSessionsList(ctx context.Context, dbPath string) error {
	db, err := state.Connect(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No archived runs.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tFINISHED\tCONTACT\tSTATE\tVERDICT\tEVENTS\tELAPSED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			shortID(run.ID),
			run.FinishedAt.Local().Format("2006-01-02 15:04"),
			run.ContactName,
			run.State,
			orDash(run.Verdict),
			run.EventCount,
			run.Elapsed,
		)
	}
	return w.Flush()
}
