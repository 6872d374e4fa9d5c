package sink

import "time"

// lineRecord is the gorm model backing SQLiteSink, one row per tailed line.
type lineRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	SourceName string    `gorm:"type:varchar(255);not null;index:idx_source_name"`
	LogNumber  int       `gorm:"not null"`
	Offset     int64     `gorm:"not null"`
	Line       string    `gorm:"type:text;not null"`
	ReadAt     time.Time `gorm:"not null;index:idx_read_at"`
}

func (lineRecord) TableName() string {
	return "line_records"
}
