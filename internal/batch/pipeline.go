package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/raaihank/chatpsy/internal/config"
	"github.com/raaihank/chatpsy/internal/ingest"
	"github.com/raaihank/chatpsy/internal/logger"
	"github.com/raaihank/chatpsy/internal/privacy"
)

// OutputSuffix is appended to every anonymized file name.
const OutputSuffix = ".anon.txt"

// Pipeline anonymizes chat exports on disk with a pool of workers. Each
// top-level file (plain export or ZIP archive) is one conversation and
// gets its own alias registry.
type Pipeline struct {
	anonymizer *privacy.Anonymizer
	loader     *ingest.Loader
	config     config.BatchConfig
	logger     *logger.Logger
}

type job struct {
	path   string
	name   string
	output string
}

// NewPipeline creates a new batch pipeline
func NewPipeline(anonymizer *privacy.Anonymizer, loader *ingest.Loader, cfg config.BatchConfig, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{
		anonymizer: anonymizer,
		loader:     loader,
		config:     cfg,
		logger:     log.WithComponent("batch"),
	}
}

// Run anonymizes every supported file under inputs (files or directories)
// into cfg.OutputDir and writes the parquet summary there. Per-file
// failures are recorded in the result; only setup errors, cancellation and
// summary failures are returned.
func (p *Pipeline) Run(ctx context.Context, inputs []string) (*ProcessingResult, error) {
	start := time.Now()

	jobs, err := p.collect(inputs)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, ingest.ErrNoSupportedFiles
	}
	if err := os.MkdirAll(p.config.OutputDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	workers := max(1, min(p.config.WorkerCount, len(jobs)))
	p.logger.Info("Starting batch anonymization",
		zap.Int("files", len(jobs)),
		zap.Int("workers", workers),
		zap.String("output_dir", p.config.OutputDir))

	queue := make(chan job)
	reports := make(chan FileReport, len(jobs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				reports <- p.processFile(j)
			}
		}()
	}

feed:
	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case queue <- j:
		}
	}
	close(queue)
	wg.Wait()
	close(reports)
	canceled := ctx.Err() != nil

	result := &ProcessingResult{}
	for r := range reports {
		result.Reports = append(result.Reports, r)
	}
	slices.SortFunc(result.Reports, func(a, b FileReport) int { return strings.Compare(a.File, b.File) })

	failed := lo.Filter(result.Reports, func(r FileReport, _ int) bool { return r.Error != "" })
	result.TotalFiles = int64(len(result.Reports))
	result.ProcessedFailed = int64(len(failed))
	result.ProcessedOK = result.TotalFiles - result.ProcessedFailed
	result.TotalBytes = lo.SumBy(result.Reports, func(r FileReport) int64 { return r.Bytes })
	result.Errors = lo.Map(failed, func(r FileReport, _ int) string { return r.File + ": " + r.Error })

	if canceled {
		result.Duration = time.Since(start)
		return result, ctx.Err()
	}

	if p.config.Summary != "" {
		result.SummaryPath = filepath.Join(p.config.OutputDir, p.config.Summary)
		if err := WriteSummary(result.SummaryPath, result.Reports); err != nil {
			return result, err
		}
	}

	result.Duration = time.Since(start)
	p.logger.Info("Batch anonymization completed",
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		logger.Bytes("total_size", result.TotalBytes),
		zap.Duration("total_duration", result.Duration))

	return result, nil
}

// collect expands directories and keeps files the loader accepts. Names
// are relative to the input directory so nested exports stay distinct.
func (p *Pipeline) collect(inputs []string) ([]job, error) {
	var jobs []job
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", input, err)
		}
		if !info.IsDir() {
			jobs = append(jobs, job{path: input, name: filepath.Base(input)})
			continue
		}

		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !p.loader.Accepts(path) {
				return nil
			}
			rel, err := filepath.Rel(input, path)
			if err != nil {
				return err
			}
			jobs = append(jobs, job{path: path, name: rel})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", input, err)
		}
	}
	jobs = lo.UniqBy(jobs, func(j job) string { return j.path })
	assignOutputs(jobs)
	return jobs, nil
}

// assignOutputs gives every job its own output file. Names that flatten to
// the same file, such as chat.txt from two input roots, get a -2, -3...
// suffix in collection order. Comparison ignores case so the result is also
// safe on case-insensitive filesystems.
func assignOutputs(jobs []job) {
	used := make(map[string]bool, len(jobs))
	for i := range jobs {
		base := OutputName(jobs[i].name)
		out := base
		for n := 2; used[strings.ToLower(out)]; n++ {
			out = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(base, OutputSuffix), n, OutputSuffix)
		}
		used[strings.ToLower(out)] = true
		jobs[i].output = out
	}
}

func (p *Pipeline) processFile(j job) FileReport {
	start := time.Now()
	report := FileReport{File: j.name}
	fail := func(err error) FileReport {
		report.Error = err.Error()
		report.DurationMS = msSince(start)
		p.logger.Warn("Failed to anonymize file", zap.String("file", j.name), zap.Error(err))
		return report
	}

	data, err := os.ReadFile(j.path)
	if err != nil {
		return fail(err)
	}
	report.Bytes = int64(len(data))

	upload, err := p.loader.Load([]ingest.File{{Name: filepath.Base(j.path), Data: data}})
	if err != nil {
		return fail(err)
	}

	res := p.anonymizer.Anonymize(upload.Combined)
	report.Participants = int64(len(res.Mapping))
	for _, f := range res.Findings {
		switch f.EntityType {
		case privacy.EntityPhone:
			report.Phones = int64(f.Count)
		case privacy.EntityEmail:
			report.Emails = int64(f.Count)
		}
	}

	report.Output = j.output
	if err := os.WriteFile(filepath.Join(p.config.OutputDir, report.Output), []byte(res.Anonymized), 0o600); err != nil {
		return fail(err)
	}

	report.DurationMS = msSince(start)
	p.logger.Debug("File anonymized",
		zap.String("file", j.name),
		zap.Int64("participants", report.Participants),
		logger.Bytes("size", report.Bytes))
	return report
}

// OutputName flattens a relative input path into the output file name:
// "2024/chat.html" becomes "2024_chat.html.anon.txt".
func OutputName(name string) string {
	flat := strings.ReplaceAll(filepath.ToSlash(name), "/", "_")
	return flat + OutputSuffix
}

// WriteSummary writes reports as a parquet file.
func WriteSummary(path string, reports []FileReport) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create summary: %w", err)
	}

	w := parquet.NewGenericWriter[FileReport](f)
	if _, err := w.Write(reports); err != nil {
		f.Close()
		return fmt.Errorf("failed to write summary: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush summary: %w", err)
	}
	return f.Close()
}

// ReadSummary loads a summary written by WriteSummary.
func ReadSummary(path string) ([]FileReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open summary: %w", err)
	}
	defer f.Close()

	reader := parquet.NewReader(f)
	defer reader.Close()

	var reports []FileReport
	for {
		var r FileReport
		err := reader.Read(&r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read summary: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
