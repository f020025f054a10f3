package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"voicebatch/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				batches, err := store.ListBatches(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(batches) == 0 {
					fmt.Fprintln(out, "No batches recorded")
					return nil
				}
				rows := make([][]string, 0, len(batches))
				for _, b := range batches {
					rows = append(rows, []string{
						shortID(b.ID),
						b.Started.Local().Format(logTimeLayout),
						strconv.Itoa(b.Total),
						strconv.Itoa(b.Done),
						strconv.Itoa(b.Skipped),
						formatDuration(b.Duration()),
						b.OutputRoot,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Batch", "Started", "Files", "Done", "Skipped", "Time", "Output"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of batches to show (0 for all)")
	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show BATCH",
		Short: "Show per-file outcomes of a batch (id or unique prefix)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				batch, err := findBatch(cmd, store, args[0])
				if err != nil {
					return err
				}
				tasks, err := store.ListTasks(cmd.Context(), batch.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintf(out, "Batch %s\n", batch.ID)
				fmt.Fprintf(out, "Output: %s\n", batch.OutputRoot)
				fmt.Fprintf(out, "Started: %s  Workers: %d  Done: %d  Skipped: %d\n",
					batch.Started.Local().Format(logTimeLayout), batch.Concurrency, batch.Done, batch.Skipped)

				rows := make([][]string, 0, len(tasks))
				for _, t := range tasks {
					detail := t.OutputDir
					if t.State != "done" {
						detail = fmt.Sprintf("%s (%s)", t.Reason, t.Stage)
					}
					rows = append(rows, []string{
						strconv.Itoa(t.TaskNum),
						t.Source,
						stateLabel(t.State, colorize),
						t.JobID,
						detail,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Source", "State", "Job", "Output"},
					rows,
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func findBatch(cmd *cobra.Command, store *history.Store, ref string) (*history.Batch, error) {
	ref = strings.TrimSpace(ref)
	if b, err := store.GetBatch(cmd.Context(), ref); err != nil || b != nil {
		return b, err
	}
	batches, err := store.ListBatches(cmd.Context(), 0)
	if err != nil {
		return nil, err
	}
	var match *history.Batch
	for i := range batches {
		if !strings.HasPrefix(batches[i].ID, ref) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("batch prefix %q is ambiguous", ref)
		}
		match = &batches[i]
	}
	if match == nil {
		return nil, fmt.Errorf("batch %q not found", ref)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
