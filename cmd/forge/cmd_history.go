package main

import (
	"fmt"
	"time"

	"forge/internal/store"
	"forge/internal/ux"

	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd browses archived sessions
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived sessions",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the report of an archived session",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Sessions to list")
	historyShowCmd.Flags().BoolVar(&plain, "plain", false, "Print the report as raw markdown")
	historyShowCmd.Flags().BoolVar(&showFiles, "show-files", false, "Include artifact sources in the report")
	historyCmd.AddCommand(historyShowCmd)
}

func openArchive() (*store.Archive, error) {
	if cfg.Archive.Path == "" {
		return nil, fmt.Errorf("archive.path is not configured")
	}
	return store.Open(cfg.Archive.Path)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	archive, err := openArchive()
	if err != nil {
		return err
	}
	defer archive.Close()

	sessions, err := archive.List(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No archived sessions found.")
		return nil
	}

	t := ux.NewTable(fmt.Sprintf("%d session(s)", len(sessions)),
		"ID", "Title", "Outcome", "Steps", "Open", "Artifacts", "Started")
	for _, s := range sessions {
		t.AddRow(s.ID, s.Title, s.Outcome,
			fmt.Sprint(s.Steps), fmt.Sprint(s.OpenConflicts), fmt.Sprint(s.Artifacts),
			s.StartedAt.Local().Format(time.DateTime))
	}
	fmt.Fprint(cmd.OutOrStdout(), t.View(ux.DefaultStyles()))
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	archive, err := openArchive()
	if err != nil {
		return err
	}
	defer archive.Close()

	res, err := archive.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}
