package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"voicebatch/internal/batch"
	"voicebatch/internal/config"
	"voicebatch/internal/filetask"
	"voicebatch/internal/history"
	"voicebatch/internal/logging"
	"voicebatch/internal/manifest"
	"voicebatch/internal/services/minimax"
)

type runOptions struct {
	manifestPath string
	outputDir    string
	concurrency  int
	model        string
	voiceID      string
	speed        float64
	vol          float64
	pitch        int
	emotion      string
	quiet        bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [files or directories...]",
		Short: "Synthesize speech for text files",
		Long: `Submit every input to the speech service, wait for the jobs, and unpack the
results into the output directory. Directories contribute their *.txt files.
A TOML manifest (--manifest) can set per-file voice settings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && strings.TrimSpace(opts.manifestPath) == "" {
				return fmt.Errorf("no inputs: pass files, directories, or --manifest")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runBatch(cmd, cfg, args, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.manifestPath, "manifest", "m", "", "TOML manifest listing files and per-file settings")
	flags.StringVarP(&opts.outputDir, "output", "o", "", "Output directory (default batch.output_dir)")
	flags.IntVarP(&opts.concurrency, "concurrency", "n", 0, "Files processed in parallel (1-100)")
	flags.StringVar(&opts.model, "model", "", "Speech model")
	flags.StringVar(&opts.voiceID, "voice", "", "Voice id")
	flags.Float64Var(&opts.speed, "speed", 0, "Speech speed (0.5-2.0)")
	flags.Float64Var(&opts.vol, "vol", 0, "Volume (0-10]")
	flags.IntVar(&opts.pitch, "pitch", 0, "Pitch (-12 to 12)")
	flags.StringVar(&opts.emotion, "emotion", "", "Emotion ("+strings.Join(config.Emotions, ", ")+")")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Only print the summary")
	return cmd
}

func runBatch(cmd *cobra.Command, cfg *config.Config, args []string, opts runOptions) error {
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}
	requests, outputDir, concurrency, err := collectRequests(cfg, opts.manifestPath, args, voiceFlags(cmd))
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("output") {
		expanded, err := config.ExpandPath(strings.TrimSpace(opts.outputDir))
		if err != nil {
			return fmt.Errorf("resolve output directory: %w", err)
		}
		outputDir = expanded
	}
	if cmd.Flags().Changed("concurrency") {
		concurrency = opts.concurrency
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hub := logging.NewStreamHub(4096)
	logger, err := logging.NewFromConfig(cfg, hub, false)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	var stopFollow func()
	if !opts.quiet {
		stopFollow = followLog(hub, out, colorize)
	}

	runnerOpts := []batch.Option{}
	if store, err := history.Open(cfg.Paths.HistoryDB); err != nil {
		logging.WarnWithContext(logger, "batch history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.history_db"),
			logging.String(logging.FieldImpact, "this batch will not appear in 'voicebatch history'"),
		)
	} else {
		defer store.Close()
		runnerOpts = append(runnerOpts, batch.WithHistory(store))
	}

	client := minimax.NewClient(minimax.Config{
		BaseURL:                cfg.API.BaseURL,
		GroupID:                cfg.API.GroupID,
		APIKey:                 cfg.API.APIKey,
		TimeoutSeconds:         cfg.API.TimeoutSeconds,
		DownloadTimeoutSeconds: cfg.API.DownloadTimeoutSeconds,
	})
	runner := batch.New(cfg, batch.NewPipeline(cfg, client, logger), logger, runnerOpts...)

	summary, runErr := runner.Run(signalCtx, requests, outputDir, concurrency)
	if stopFollow != nil {
		stopFollow()
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSummary(summary, colorize))
	if err := signalCtx.Err(); err != nil {
		return err
	}
	if summary.Skipped > 0 {
		return fmt.Errorf("%d of %d files skipped", summary.Skipped, summary.Total)
	}
	return nil
}

// collectRequests builds the batch from the manifest and positional paths.
// Settings cascade config < manifest [defaults] < [[file]] < flags.
func collectRequests(cfg *config.Config, manifestPath string, args []string, flags manifest.Override) ([]filetask.Request, string, int, error) {
	outputDir := cfg.Batch.OutputDir
	concurrency := cfg.Batch.Concurrency
	var requests []filetask.Request
	if path := strings.TrimSpace(manifestPath); path != "" {
		m, err := manifest.Load(path)
		if err != nil {
			return nil, "", 0, err
		}
		requests = m.Requests(cfg.Defaults)
		if m.OutputDir != "" {
			outputDir = m.OutputDir
		}
		if m.Concurrency > 0 {
			concurrency = m.Concurrency
		}
	}
	if len(args) > 0 {
		extra, err := manifest.FromPaths(args, cfg.Defaults)
		if err != nil {
			return nil, "", 0, err
		}
		requests = append(requests, extra...)
	}
	for i := range requests {
		requests[i].Voice = flags.Apply(requests[i].Voice)
	}
	return requests, outputDir, concurrency, nil
}

// voiceFlags returns the voice settings given explicitly on the command line.
func voiceFlags(cmd *cobra.Command) manifest.Override {
	flags := cmd.Flags()
	var o manifest.Override
	if flags.Changed("model") {
		if v, err := flags.GetString("model"); err == nil {
			o.Model = &v
		}
	}
	if flags.Changed("voice") {
		if v, err := flags.GetString("voice"); err == nil {
			o.VoiceID = &v
		}
	}
	if flags.Changed("speed") {
		if v, err := flags.GetFloat64("speed"); err == nil {
			o.Speed = &v
		}
	}
	if flags.Changed("vol") {
		if v, err := flags.GetFloat64("vol"); err == nil {
			o.Vol = &v
		}
	}
	if flags.Changed("pitch") {
		if v, err := flags.GetInt("pitch"); err == nil {
			o.Pitch = &v
		}
	}
	if flags.Changed("emotion") {
		if v, err := flags.GetString("emotion"); err == nil {
			o.Emotion = &v
		}
	}
	return o
}

// followLog prints hub events to w until the returned stop function is
// called. stop drains any events still buffered before returning.
func followLog(hub *logging.StreamHub, w io.Writer, colorize bool) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan uint64)
	go func() {
		var since uint64
		for {
			events, _, err := hub.Fetch(ctx, since, 256, true)
			since = printEvents(w, events, since, colorize)
			if err != nil {
				done <- since
				return
			}
		}
	}()
	return func() {
		cancel()
		since := <-done
		for {
			events, _, _ := hub.Fetch(context.Background(), since, 0, false)
			if len(events) == 0 {
				return
			}
			since = printEvents(w, events, since, colorize)
		}
	}
}

// printEvents writes events and returns the last sequence printed. Events
// evicted from the hub before they were read are reported as a gap.
func printEvents(w io.Writer, events []logging.LogEvent, since uint64, colorize bool) uint64 {
	for _, evt := range events {
		if evt.Sequence > since+1 {
			fmt.Fprintf(w, "... %d log lines dropped\n", evt.Sequence-since-1)
		}
		fmt.Fprintln(w, formatEvent(evt, colorize))
		since = evt.Sequence
	}
	return since
}

func renderSummary(summary batch.Summary, colorize bool) string {
	rows := make([][]string, 0, len(summary.Outcomes))
	for _, out := range summary.Outcomes {
		detail := out.OutputDir
		if out.State != filetask.StateDone {
			detail = fmt.Sprintf("%s (%s)", out.Reason, out.Stage)
		}
		rows = append(rows, []string{
			strconv.Itoa(out.TaskNum),
			filepath.Base(out.Source),
			stateLabel(string(out.State), colorize),
			yesNo(out.SubtitlePath != ""),
			detail,
			formatDuration(out.Duration()),
		})
	}
	footer := []string{
		"",
		fmt.Sprintf("%d files", summary.Total),
		fmt.Sprintf("%d done, %d skipped", summary.Done, summary.Skipped),
		"",
		summary.OutputRoot,
		formatDuration(summary.Duration),
	}
	return renderTable(
		[]string{"#", "File", "State", "SRT", "Output", "Time"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		footer...,
	)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
