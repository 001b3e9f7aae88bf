package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/raaihank/chatpsy/internal/config"
	"github.com/raaihank/chatpsy/internal/logger"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no analysis has the requested id.
var ErrNotFound = errors.New("analysis not found")

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// AnalysisRecord is one stored analysis. It holds the hash of the
// anonymized text, never the text itself or the alias mapping.
type AnalysisRecord struct {
	ID           string    `db:"id" json:"id"`
	TextHash     string    `db:"text_hash" json:"text_hash"`
	UploadBytes  int64     `db:"upload_bytes" json:"upload_bytes"`
	Participants int       `db:"participants" json:"participants"`
	RangeFrom    string    `db:"range_from" json:"range_from,omitempty"`
	RangeTo      string    `db:"range_to" json:"range_to,omitempty"`
	Response     string    `db:"response" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		text_hash TEXT NOT NULL,
		upload_bytes BIGINT NOT NULL,
		participants INTEGER NOT NULL,
		range_from TEXT NOT NULL DEFAULT '',
		range_to TEXT NOT NULL DEFAULT '',
		response TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses (created_at)`,
}

const selectColumns = `id, text_hash, upload_bytes, participants, range_from, range_to, response, created_at`

// Open connects to the configured database and applies pool settings.
func Open(cfg config.StoreConfig, log *logger.Logger) (*sqlx.DB, error) {
	var driver string
	switch cfg.Driver {
	case "postgres":
		driver = "postgres"
	case "sqlite":
		driver = "sqlite"
		if err := ensureSQLiteDir(cfg.DSN); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}

	db, err := sqlx.Connect(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if log != nil {
		log.Info("Database connected",
			zap.String("driver", driver),
			zap.String("dsn", maskDatabaseURL(cfg.DSN)),
			zap.Int("max_open_conns", cfg.MaxOpenConns))
	}

	return db, nil
}

// AnalysisStore keeps a history of analyses.
type AnalysisStore struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewAnalysisStore wraps an open database.
func NewAnalysisStore(db *sqlx.DB, log *logger.Logger) *AnalysisStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &AnalysisStore{db: db, logger: log.WithComponent("store")}
}

// Migrate creates the schema if it does not exist.
func (s *AnalysisStore) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// Save inserts rec, filling in ID and CreatedAt when they are empty.
func (s *AnalysisStore) Save(ctx context.Context, rec *AnalysisRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO analyses (` + selectColumns + `)
		VALUES (:id, :text_hash, :upload_bytes, :participants, :range_from, :range_to, :response, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}

	s.logger.Debug("Analysis saved",
		zap.String("id", rec.ID),
		zap.Int("participants", rec.Participants),
		logger.Bytes("upload_size", rec.UploadBytes))

	return nil
}

// Get returns the analysis with the given id, or ErrNotFound.
func (s *AnalysisStore) Get(ctx context.Context, id string) (*AnalysisRecord, error) {
	var rec AnalysisRecord
	query := s.db.Rebind(`SELECT ` + selectColumns + ` FROM analyses WHERE id = ?`)
	if err := s.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &rec, nil
}

// Recent returns up to limit analyses, newest first.
func (s *AnalysisStore) Recent(ctx context.Context, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	records := []AnalysisRecord{}
	query := s.db.Rebind(`SELECT ` + selectColumns + ` FROM analyses ORDER BY created_at DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return records, nil
}

// Close closes the database.
func (s *AnalysisStore) Close() error {
	return s.db.Close()
}

func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	return nil
}

// maskDatabaseURL hides the password of a URL-style DSN.
func maskDatabaseURL(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
