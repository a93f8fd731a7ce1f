package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ayusman/formrep/internal/chart"
	"github.com/ayusman/formrep/internal/replay"
	"github.com/ayusman/formrep/internal/session"
)

var replayOpts struct {
	input string
	chart string
	quiet bool
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Count reps in a recorded keypoint file",
	Long: `Replay feeds a JSONL keypoint recording, as written by "serve --record",
through the rep counter and prints a summary of the set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(cmd)
	},
}

func init() {
	f := replayCmd.Flags()
	f.StringVarP(&replayOpts.input, "input", "i", "", "keypoint recording to replay (required)")
	f.StringVar(&replayOpts.chart, "chart", "", "write an HTML chart of the set to this file")
	f.BoolVarP(&replayOpts.quiet, "quiet", "q", false, "hide the progress bar")
	replayCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command) error {
	total, err := countFrames(replayOpts.input)
	if err != nil {
		return err
	}

	p, err := cfg.LoadProfile(db)
	if err != nil {
		return err
	}
	if p != nil {
		log.Printf("Using threshold profile %q", p.Name)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s, err := session.New(cfg.Session())
	if err != nil {
		return err
	}

	in, err := os.Open(replayOpts.input)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	defer in.Close()

	var bar *progressbar.ProgressBar
	if !replayOpts.quiet {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Replaying"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)
	}

	var reports []session.Report
	sum, err := replay.Run(cmd.Context(), in, s, func(r session.Report) {
		reports = append(reports, r)
		if bar != nil {
			bar.Add(1)
		}
	})
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("replay %s: %w", replayOpts.input, err)
	}

	printSummary(os.Stdout, sum)

	if replayOpts.chart != "" {
		if err := writeChart(replayOpts.chart, reports, s.Reps()); err != nil {
			return err
		}
		fmt.Printf("Chart written to %s\n", replayOpts.chart)
	}
	return nil
}

func countFrames(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	n, err := replay.Count(f)
	if err != nil {
		return 0, fmt.Errorf("read recording: %w", err)
	}
	return n, nil
}

func writeChart(path string, reports []session.Report, reps []session.Rep) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	if err := chart.Render(out, reports, reps, cfg.Thresholds); err != nil {
		out.Close()
		return fmt.Errorf("render chart: %w", err)
	}
	return out.Close()
}

// printSummary writes sum as an aligned two-column table.
func printSummary(w io.Writer, sum session.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Session\t%s\n", sum.SessionID)
	fmt.Fprintf(tw, "Duration\t%s\n", sum.Duration.Round(100*time.Millisecond))
	fmt.Fprintf(tw, "Reps\t%d\n", sum.Reps)
	fmt.Fprintf(tw, "Frames\t%d (%d evaluated)\n", sum.Frames, sum.Evaluated)

	reasons := make([]string, 0, len(sum.Skipped))
	for reason := range sum.Skipped {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(tw, "  skipped: %s\t%d\n", reason, sum.Skipped[session.SkipReason(reason)])
	}

	if sum.Evaluated > 0 {
		fmt.Fprintf(tw, "Good form\t%.0f%%\n", sum.GoodFormRatio*100)
	}
	if sum.Reps > 0 {
		fmt.Fprintf(tw, "Mean depth\t%.1f° (±%.1f)\n", sum.MeanDepth, sum.DepthStdDev)
		fmt.Fprintf(tw, "Deepest rep\t%.1f°\n", sum.DeepestRep)
		fmt.Fprintf(tw, "Pace\t%.1f reps/min\n", sum.RepsPerMinute)
	}
	tw.Flush()
}
