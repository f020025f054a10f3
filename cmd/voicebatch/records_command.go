package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"voicebatch/internal/config"
	"voicebatch/internal/successlog"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List downloads recorded in the success log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			root := cfg.Batch.OutputDir
			if strings.TrimSpace(outputDir) != "" {
				if root, err = config.ExpandPath(strings.TrimSpace(outputDir)); err != nil {
					return fmt.Errorf("resolve output directory: %w", err)
				}
			}
			log, err := successlog.Open(cfg.SuccessLogPath(root))
			if err != nil {
				return err
			}
			records, err := log.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintf(out, "No records in %s\n", log.Path())
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					rec.Timestamp.Local().Format(logTimeLayout),
					rec.BaseName,
					rec.JobID,
					rec.VoiceID,
					strconv.FormatFloat(rec.Speed, 'f', -1, 64),
					rec.Emotion,
					rec.Model,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Downloaded", "Name", "Job", "Voice", "Speed", "Emotion", "Model"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory whose log to read (default batch.output_dir)")
	return cmd
}
