package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNoRows = sql.ErrNoRows

// Pool owns the primary store. SQLite deadlocks easily under parallel
// writers, so exactly one writer connection is kept (max open conns = 1) and
// all mutations go through it; reads use a separate connection set.
type Pool struct {
	writer    *gorm.DB
	reader    *gorm.DB
	sqlWriter *sql.DB
	sqlReader *sql.DB
}

// Options tunes pool behavior. The zero value is usable.
type Options struct {
	LogLevel    string
	Environment string
	// LocalRun permits destructive schema repair (table recreation).
	LocalRun bool
}

// Open opens the primary store at path, applies pragmas, and runs migrations.
func Open(ctx context.Context, path string, opts Options) (*Pool, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is empty")
	}

	gormLogLevel := resolveGormLogLevel(opts.LogLevel, opts.Environment)
	dsn := sqliteDSN(path)

	open := func(maxConns int) (*gorm.DB, *sql.DB, error) {
		gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(gormLogLevel),
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite database: %w", err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("get sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(maxConns)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		return gdb, sqlDB, nil
	}

	writer, sqlWriter, err := open(1)
	if err != nil {
		return nil, err
	}
	reader, sqlReader, err := open(8)
	if err != nil {
		_ = sqlWriter.Close()
		return nil, err
	}

	pool := &Pool{
		writer:    writer,
		reader:    reader,
		sqlWriter: sqlWriter,
		sqlReader: sqlReader,
	}
	if err := pool.migrate(ctx, opts.LocalRun); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return pool, nil
}

// SQLiteDSN attaches the standard performance pragmas to a database path.
// Secondary stores reuse it so every file gets the same settings.
func SQLiteDSN(path string) string {
	return sqliteDSN(path)
}

// sqliteDSN attaches the performance pragmas to every connection: WAL
// journaling, 15s busy timeout, ~16MB page cache, normal sync, in-memory temp
// store, and foreign keys on.
func sqliteDSN(path string) string {
	pragmas := []string{
		"journal_mode(WAL)",
		"busy_timeout(15000)",
		"cache_size(-16000)",
		"synchronous(NORMAL)",
		"temp_store(MEMORY)",
		"foreign_keys(ON)",
	}
	parts := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		parts = append(parts, "_pragma="+p)
	}
	return path + "?" + strings.Join(parts, "&")
}

// Writer returns the single-writer handle. Callers must not retain it across
// transactions.
func (p *Pool) Writer() *gorm.DB {
	if p == nil {
		return nil
	}
	return p.writer
}

// Reader returns the concurrent read handle.
func (p *Pool) Reader() *gorm.DB {
	if p == nil {
		return nil
	}
	return p.reader
}

// WriteTx runs fn inside a transaction on the writer connection.
func (p *Pool) WriteTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if p == nil || p.writer == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	return p.writer.WithContext(ctx).Transaction(fn)
}

func (p *Pool) Close() error {
	if p == nil {
		return nil
	}
	var firstErr error
	if p.sqlReader != nil {
		if err := p.sqlReader.Close(); err != nil {
			firstErr = err
		}
	}
	if p.sqlWriter != nil {
		if err := p.sqlWriter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows) || errors.Is(err, gorm.ErrRecordNotFound)
}

func resolveGormLogLevel(appLogLevel, environment string) logger.LogLevel {
	level := strings.ToLower(strings.TrimSpace(appLogLevel))
	switch level {
	case "trace", "debug":
		return logger.Info
	case "warn", "warning", "info", "":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		if strings.EqualFold(strings.TrimSpace(environment), "local") {
			return logger.Warn
		}
		return logger.Error
	}
}
