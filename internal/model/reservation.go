package model

// OriginScheduler tags reservations created by the LCO schedule import.
// User-created reservations carry a different (or no) origin and are never
// touched by the importer.
const OriginScheduler = "LCO"

// ProjectIDNone is the sentinel for a reservation with no associated project.
const ProjectIDNone = "none"

// Reservation is a calendar booking of a logical site for a time window.
//
// Start and End are UTC timestamps kept in their upstream ISO-8601 string
// form. RFC3339 strings at a fixed precision order the same as their
// instants, so range conditions on End are evaluated directly on the column.
type Reservation struct {
	EventID string `gorm:"primaryKey;size:128" json:"event_id"`
	Start   string `gorm:"primaryKey;size:40" json:"start"`
	End     string `gorm:"size:40;not null;index:idx_reservations_site_end,priority:2" json:"end"`
	Site    string `gorm:"size:16;not null;index:idx_reservations_site_end,priority:1" json:"site"`

	Creator      string `gorm:"size:256" json:"creator"`
	CreatorID    string `gorm:"size:256;index" json:"creator_id"`
	LastModified string `gorm:"size:40" json:"last_modified"`

	ProjectID       string `gorm:"size:256" json:"project_id"`
	ProjectPriority string `gorm:"size:32" json:"project_priority"`

	ReservationType string `gorm:"size:32" json:"reservation_type"`
	ReservationNote string `json:"reservation_note,omitempty"`
	Origin          string `gorm:"size:16;index" json:"origin"`
	ResourceID      string `gorm:"size:16" json:"resourceId"`
	Title           string `gorm:"size:512" json:"title"`
}
