package batch

import "time"

// FileReport is one row of the parquet summary. It carries counts only.
type FileReport struct {
	File         string  `parquet:"file" json:"file"`
	Output       string  `parquet:"output" json:"output"`
	Bytes        int64   `parquet:"bytes" json:"bytes"`
	Participants int64   `parquet:"participants" json:"participants"`
	Phones       int64   `parquet:"phones" json:"phones"`
	Emails       int64   `parquet:"emails" json:"emails"`
	DurationMS   float64 `parquet:"duration_ms" json:"duration_ms"`
	Error        string  `parquet:"error" json:"error,omitempty"`
}

// ProcessingResult represents the result of a batch run
type ProcessingResult struct {
	TotalFiles      int64         `json:"total_files"`
	ProcessedOK     int64         `json:"processed_ok"`
	ProcessedFailed int64         `json:"processed_failed"`
	TotalBytes      int64         `json:"total_bytes"`
	Duration        time.Duration `json:"duration"`
	SummaryPath     string        `json:"summary_path,omitempty"`
	Reports         []FileReport  `json:"reports"`
	Errors          []string      `json:"errors,omitempty"`
}
