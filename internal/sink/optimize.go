package sink

import (
	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// createIndexes adds the composite indexes line_records is actually queried
// by: per-source lookups (dashboard/status), retention's read_at cutoff
// scan, and a covering index for the common recent-lines tail. IF NOT
// EXISTS keeps this idempotent across restarts.
func createIndexes(db *gorm.DB, logger *pterm.Logger) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_source_read_at
		 ON line_records(source_name, read_at DESC)`,

		`CREATE INDEX IF NOT EXISTS idx_read_at_cleanup
		 ON line_records(read_at)`,

		`CREATE INDEX IF NOT EXISTS idx_source_log_number
		 ON line_records(source_name, log_number, offset)`,
	}

	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	logger.Trace("sink indexes verified", logger.Args("count", len(indexes)))
	return nil
}
