package ingest

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/raaihank/chatpsy/internal/config"
	"github.com/raaihank/chatpsy/internal/logger"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Loader validates uploads and turns them into one combined text.
type Loader struct {
	allowed    map[string]bool
	maxUpload  int64
	maxEntry   int64
	maxEntries int
	logger     *logger.Logger
}

// New creates a loader from configuration. A nil logger discards output.
func New(cfg config.IngestConfig, log *logger.Logger) (*Loader, error) {
	if log == nil {
		log = logger.NewNop()
	}

	maxUpload, err := cfg.MaxUploadBytes()
	if err != nil {
		return nil, err
	}
	maxEntry, err := cfg.MaxEntryBytes()
	if err != nil {
		return nil, err
	}

	allowed := lo.SliceToMap(cfg.AllowedExtensions, func(ext string) (string, bool) {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		return ext, true
	})

	return &Loader{
		allowed:    allowed,
		maxUpload:  maxUpload,
		maxEntry:   maxEntry,
		maxEntries: cfg.MaxArchiveEntries,
		logger:     log.WithComponent("ingest"),
	}, nil
}

// Accepts reports whether name has an allowed extension.
func (l *Loader) Accepts(name string) bool {
	return l.allowed[strings.ToLower(filepath.Ext(name))]
}

// Load filters, expands, sorts and concatenates files. Unsupported files
// are reported in Upload.Rejected; the call fails only when nothing usable
// remains or a size limit is hit.
func (l *Loader) Load(files []File) (*Upload, error) {
	total := lo.SumBy(files, func(f File) int64 { return int64(len(f.Data)) })
	if l.maxUpload > 0 && total > l.maxUpload {
		return nil, fmt.Errorf("%w: %d bytes", ErrUploadTooLarge, total)
	}

	var (
		texts    []File
		rejected []Rejection
	)

	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Name))
		switch {
		case !l.allowed[ext]:
			rejected = append(rejected, Rejection{Name: f.Name, Reason: "unsupported file type"})
		case ext == ".zip":
			entries, skipped, err := l.expandZip(f)
			if err != nil {
				if errors.Is(err, ErrArchiveTooLarge) {
					return nil, err
				}
				rejected = append(rejected, Rejection{Name: f.Name, Reason: err.Error()})
				continue
			}
			texts = append(texts, entries...)
			rejected = append(rejected, skipped...)
		default:
			texts = append(texts, f)
		}
	}

	if len(rejected) > 0 {
		l.logger.Warn("Ignored unsupported files", zap.Int("count", len(rejected)))
	}

	if len(texts) == 0 {
		return nil, ErrNoSupportedFiles
	}

	SortByName(texts)

	upload := &Upload{
		Combined:  Combine(texts),
		FileNames: lo.Map(texts, func(f File, _ int) string { return f.Name }),
		TotalSize: total,
		Rejected:  rejected,
	}

	l.logger.Info("Upload loaded",
		zap.Int("files", len(upload.FileNames)),
		logger.Bytes("size", total),
	)

	return upload, nil
}

// expandZip returns the supported text entries of a ZIP archive, named
// "<archive>/<entry>".
func (l *Loader) expandZip(f File) ([]File, []Rejection, error) {
	zr, err := zip.NewReader(bytes.NewReader(f.Data), int64(len(f.Data)))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	if l.maxEntries > 0 && len(zr.File) > l.maxEntries {
		return nil, nil, fmt.Errorf("%w: %d entries", ErrArchiveTooLarge, len(zr.File))
	}

	var (
		out      []File
		rejected []Rejection
		total    int64
	)

	for _, zf := range zr.File {
		name := zf.Name
		if zf.FileInfo().IsDir() || isMetadataEntry(name) {
			continue
		}

		ext := strings.ToLower(path.Ext(name))
		if !l.allowed[ext] || ext == ".zip" {
			rejected = append(rejected, Rejection{Name: f.Name + "/" + name, Reason: "unsupported file type"})
			continue
		}

		data, err := l.readEntry(zf)
		if err != nil {
			return nil, nil, err
		}
		total += int64(len(data))
		if l.maxUpload > 0 && total > l.maxUpload {
			return nil, nil, fmt.Errorf("%w: expanded size over %d bytes", ErrArchiveTooLarge, l.maxUpload)
		}

		out = append(out, File{Name: f.Name + "/" + name, Data: data})
	}

	return out, rejected, nil
}

func (l *Loader) readEntry(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, zf.Name, err)
	}
	defer rc.Close()

	// Declared sizes can lie; read one byte past the limit to detect overflow.
	r := io.Reader(rc)
	if l.maxEntry > 0 {
		r = io.LimitReader(rc, l.maxEntry+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, zf.Name, err)
	}
	if l.maxEntry > 0 && int64(len(data)) > l.maxEntry {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrArchiveTooLarge, zf.Name, l.maxEntry)
	}
	return data, nil
}

func isMetadataEntry(name string) bool {
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), "._")
}
