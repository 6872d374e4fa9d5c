package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pterm/pterm"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// slowQueryLogger adapts gorm's logger.Interface onto a pterm.Logger so
// query logging goes through the same structured logger as everything else.
type slowQueryLogger struct {
	logger        *pterm.Logger
	slowThreshold time.Duration
	level         gormlogger.LogLevel
}

func newSlowQueryLogger(l *pterm.Logger, threshold time.Duration) *slowQueryLogger {
	return &slowQueryLogger{logger: l, slowThreshold: threshold, level: gormlogger.Warn}
}

func (l *slowQueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	l.level = level
	return l
}

func (l *slowQueryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.Info(msg, l.logger.Args("data", data))
	}
}

func (l *slowQueryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn(msg, l.logger.Args("data", data))
	}
}

func (l *slowQueryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.Error(msg, l.logger.Args("data", data))
	}
}

func (l *slowQueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	if elapsed >= l.slowThreshold {
		l.logger.Debug("slow sink query", l.logger.Args("duration_ms", elapsed.Milliseconds(), "rows", rows, "sql", sql))
	} else if l.level >= gormlogger.Info {
		l.logger.Trace("sink query", l.logger.Args("duration_ms", elapsed.Milliseconds(), "rows", rows, "sql", sql))
	}

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.logger.Error("sink query error", l.logger.Args("error", err, "duration_ms", elapsed.Milliseconds(), "sql", sql))
	}
}

// SQLiteSink persists Records into a WAL-mode SQLite database via gorm.
type SQLiteSink struct {
	db *gorm.DB
}

// NewSQLiteSink opens (creating if absent) the database at path, tuned for
// a single-writer workload: WAL journal mode, a larger page cache, and a
// busy timeout so concurrent commits from multiple sources don't collide.
func NewSQLiteSink(path string, logger *pterm.Logger) (*SQLiteSink, error) {
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=64000&_page_size=4096&_busy_timeout=5000&_txlock=immediate"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt: true,
		Logger:      newSlowQueryLogger(logger, 100*time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("open sink database: %w", err)
	}
	if err := db.AutoMigrate(&lineRecord{}); err != nil {
		return nil, fmt.Errorf("migrate sink database: %w", err)
	}
	if err := createIndexes(db, logger); err != nil {
		logger.Warn("sink index creation had warnings", logger.Args("error", err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sink database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1) // SQLite WAL still serializes writers; avoid busy contention.
	sqlDB.SetMaxIdleConns(1)

	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Write(ctx context.Context, rec Record) error {
	row := lineRecord{
		SourceName: rec.SourceName,
		LogNumber:  rec.LogNumber,
		Offset:     rec.Offset,
		Line:       rec.Line,
		ReadAt:     time.Unix(rec.ReadAtUnix, 0),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert line record: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
