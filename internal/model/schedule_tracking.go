package model

import "time"

// ScheduleTracking records, per logical site, the last upstream
// schedule-generation timestamp that was fully imported. The importer reads
// it before each cycle to skip sites whose schedule has not changed.
type ScheduleTracking struct {
	Site             string    `gorm:"primaryKey;size:16"`
	LastScheduleTime string    `gorm:"size:40;not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}
