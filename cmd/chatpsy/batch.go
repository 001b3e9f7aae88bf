package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/raaihank/chatpsy/internal/batch"
	"github.com/raaihank/chatpsy/internal/ingest"
	"github.com/raaihank/chatpsy/internal/privacy"
)

type batchOptions struct {
	outputDir string
	workers   int
	summary   string
}

func newBatchCmd(root *rootOptions) *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch <file-or-dir>...",
		Short: "Anonymize many chat exports into an output directory",
		Long: `Every supported file found under the inputs is treated as one conversation
with its own USER_<n> numbering. Results are written as <name>.anon.txt
together with a parquet summary of per-file counts.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.outputDir, "out", "o", "", "output directory (default from config: batch.output_dir)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "number of parallel workers (default from config: batch.worker_count)")
	cmd.Flags().StringVar(&opts.summary, "summary", "", "summary file name inside the output directory")
	return cmd
}

func runBatch(cmd *cobra.Command, root *rootOptions, opts *batchOptions, args []string) error {
	cfg, log, err := root.setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if opts.outputDir != "" {
		cfg.Batch.OutputDir = opts.outputDir
	}
	if opts.workers > 0 {
		cfg.Batch.WorkerCount = opts.workers
	}
	if opts.summary != "" {
		cfg.Batch.Summary = opts.summary
	}

	anonymizer, err := privacy.New(cfg.Privacy, log)
	if err != nil {
		return err
	}
	loader, err := ingest.New(cfg.Ingest, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := batch.NewPipeline(anonymizer, loader, cfg.Batch, log).Run(ctx, args)
	if result != nil {
		printBatchResult(cmd, result)
	}
	return err
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printBatchResult(cmd *cobra.Command, result *batch.ProcessingResult) {
	failed := color.New(color.FgRed).SprintFunc()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSIZE\tPARTICIPANTS\tPHONES\tEMAILS\tOUTPUT")
	for _, r := range result.Reports {
		output := r.Output
		if r.Error != "" {
			output = failed("error: " + r.Error)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.File, humanize.IBytes(uint64(r.Bytes)), r.Participants, r.Phones, r.Emails, output)
	}
	tw.Flush()

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d anonymized, %d failed, %s in %s\n",
		result.ProcessedOK, result.ProcessedFailed,
		humanize.IBytes(uint64(result.TotalBytes)), result.Duration.Round(time.Millisecond))
	if result.SummaryPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "summary: %s\n", result.SummaryPath)
	}
}
