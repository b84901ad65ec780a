package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"observatory-calendar-backend/internal/model"
)

// ErrForbidden indicates the requesting user may not modify the reservation.
var ErrForbidden = errors.New("not authorized to modify this reservation")

// clearBatchSize bounds how many scheduler reservations are deleted per
// transaction while clearing a site's imported schedule.
const clearBatchSize = 200

// EventKey identifies a reservation by its composite primary key.
type EventKey struct {
	EventID string `json:"event_id"`
	Start   string `json:"start"`
}

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	CreateReservation(ctx context.Context, reservation *model.Reservation) error
	DeleteReservation(ctx context.Context, eventID, start, requesterID string, requesterIsAdmin bool) error
	ReplaceReservation(ctx context.Context, eventID, start string, updated *model.Reservation) error
	EventByID(ctx context.Context, eventID, start string) (*model.Reservation, error)
	SiteEventsInRange(ctx context.Context, site, start, end string) ([]model.Reservation, error)
	EventsAtTime(ctx context.Context, site, at string) ([]model.Reservation, error)
	UserEventsEndingAfter(ctx context.Context, userID, after string) ([]model.Reservation, error)

	SetProjectForEvents(ctx context.Context, projectID string, keys []EventKey) error
	RemoveProjectFromEvents(ctx context.Context, eventIDs []string) error

	ClearSchedulerReservations(ctx context.Context, site, cutoff string) ([]string, error)

	LastTrackedScheduleTime(ctx context.Context, site string) *time.Time
	SetLastScheduleTime(ctx context.Context, site string, scheduleTime time.Time) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection for collaborators that manage their
// own tables (subscriptions, notifications).
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// CreateReservation inserts a calendar reservation.
func (s *gormStore) CreateReservation(ctx context.Context, reservation *model.Reservation) error {
	if err := s.db.WithContext(ctx).Create(reservation).Error; err != nil {
		return fmt.Errorf("failed to create reservation %s: %w", reservation.EventID, err)
	}
	return nil
}

// DeleteReservation removes a reservation by its composite key. Unless the
// requester is an admin, only the reservation's creator may delete it. The
// lookup and delete run in one transaction so the returned error reflects a
// consistent row state.
func (s *gormStore) DeleteReservation(ctx context.Context, eventID, start, requesterID string, requesterIsAdmin bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reservation model.Reservation
		if err := tx.Where("event_id = ? AND start = ?", eventID, start).
			First(&reservation).Error; err != nil {
			return err
		}
		if !requesterIsAdmin && reservation.CreatorID != requesterID {
			return ErrForbidden
		}

		if err := tx.Where("event_id = ? AND start = ?", eventID, start).
			Delete(&model.Reservation{}).Error; err != nil {
			return fmt.Errorf("failed to delete reservation %s: %w", eventID, err)
		}
		return nil
	})
}

// ReplaceReservation swaps a reservation for its modified version in one
// transaction. The start time is part of the primary key, so a modification
// is a delete and recreate.
func (s *gormStore) ReplaceReservation(ctx context.Context, eventID, start string, updated *model.Reservation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("event_id = ? AND start = ?", eventID, start).Delete(&model.Reservation{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete reservation %s: %w", eventID, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Create(updated).Error; err != nil {
			return fmt.Errorf("failed to recreate reservation %s: %w", updated.EventID, err)
		}
		return nil
	})
}

// EventByID returns a single reservation by its composite key.
func (s *gormStore) EventByID(ctx context.Context, eventID, start string) (*model.Reservation, error) {
	var reservation model.Reservation
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND start = ?", eventID, start).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// SiteEventsInRange returns the site's reservations whose end time falls
// within [start, end].
func (s *gormStore) SiteEventsInRange(ctx context.Context, site, start, end string) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := s.db.WithContext(ctx).
		Where(`site = ? AND "end" BETWEEN ? AND ?`, site, start, end).
		Order("start").
		Find(&reservations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations for %s: %w", site, err)
	}
	return reservations, nil
}

// EventsAtTime returns the site's reservations active at the given instant.
func (s *gormStore) EventsAtTime(ctx context.Context, site, at string) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := s.db.WithContext(ctx).
		Where(`site = ? AND "end" >= ? AND start <= ?`, site, at, at).
		Find(&reservations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations for %s at %s: %w", site, at, err)
	}
	return reservations, nil
}

// UserEventsEndingAfter returns the user's reservations still ending after
// the given instant, across all sites.
func (s *gormStore) UserEventsEndingAfter(ctx context.Context, userID, after string) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := s.db.WithContext(ctx).
		Where(`creator_id = ? AND "end" >= ?`, userID, after).
		Order("start").
		Find(&reservations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations for user %s: %w", userID, err)
	}
	return reservations, nil
}

// SetProjectForEvents attaches the project id to every named reservation.
func (s *gormStore) SetProjectForEvents(ctx context.Context, projectID string, keys []EventKey) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range keys {
			err := tx.Model(&model.Reservation{}).
				Where("event_id = ? AND start = ?", key.EventID, key.Start).
				Update("project_id", projectID).Error
			if err != nil {
				return fmt.Errorf("failed to set project on reservation %s: %w", key.EventID, err)
			}
		}
		return nil
	})
}

// RemoveProjectFromEvents resets the named reservations to the sentinel
// project id. Only the event id is required; a reservation keeps its key
// when its project link is dropped.
func (s *gormStore) RemoveProjectFromEvents(ctx context.Context, eventIDs []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, eventID := range eventIDs {
			err := tx.Model(&model.Reservation{}).
				Where("event_id = ?", eventID).
				Update("project_id", model.ProjectIDNone).Error
			if err != nil {
				return fmt.Errorf("failed to remove project from reservation %s: %w", eventID, err)
			}
		}
		return nil
	})
}

// ClearSchedulerReservations deletes every scheduler-imported reservation at
// the site whose end time is after the cutoff, in batches, and returns the
// project ids that were associated with the deleted reservations. Sentinel
// project ids ("none", "none#") are excluded. User-created reservations are
// never touched.
func (s *gormStore) ClearSchedulerReservations(ctx context.Context, site, cutoff string) ([]string, error) {
	var projectIDs []string

	for {
		var batch []model.Reservation
		err := s.db.WithContext(ctx).
			Where(`site = ? AND "end" > ? AND origin = ?`, site, cutoff, model.OriginScheduler).
			Limit(clearBatchSize).
			Find(&batch).Error
		if err != nil {
			return projectIDs, fmt.Errorf("failed to query scheduler reservations for %s: %w", site, err)
		}
		if len(batch) == 0 {
			break
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, reservation := range batch {
				if err := tx.Where("event_id = ? AND start = ?", reservation.EventID, reservation.Start).
					Delete(&model.Reservation{}).Error; err != nil {
					return fmt.Errorf("failed to delete reservation %s: %w", reservation.EventID, err)
				}
			}
			return nil
		})
		if err != nil {
			return projectIDs, err
		}

		for _, reservation := range batch {
			switch reservation.ProjectID {
			case "", model.ProjectIDNone, model.ProjectIDNone + "#":
			default:
				projectIDs = append(projectIDs, reservation.ProjectID)
			}
		}

		if len(batch) < clearBatchSize {
			break
		}
	}

	return projectIDs, nil
}

// LastTrackedScheduleTime returns the last imported schedule time for the
// site, or nil when the site has never been tracked. Read errors are logged
// and reported as never-tracked so the caller re-imports rather than going
// silently stale.
func (s *gormStore) LastTrackedScheduleTime(ctx context.Context, site string) *time.Time {
	var tracking model.ScheduleTracking
	err := s.db.WithContext(ctx).First(&tracking, "site = ?", site).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Error retrieving last tracked schedule time for %s: %v", site, err)
		}
		return nil
	}

	t, err := time.Parse(time.RFC3339, tracking.LastScheduleTime)
	if err != nil {
		log.Printf("Unparsable tracked schedule time %q for %s: %v", tracking.LastScheduleTime, site, err)
		return nil
	}
	return &t
}

// SetLastScheduleTime upserts the tracked schedule time for the site.
func (s *gormStore) SetLastScheduleTime(ctx context.Context, site string, scheduleTime time.Time) error {
	tracking := model.ScheduleTracking{
		Site:             site,
		LastScheduleTime: scheduleTime.UTC().Format(time.RFC3339),
		UpdatedAt:        time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "site"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_schedule_time", "updated_at"}),
	}).Create(&tracking).Error
	if err != nil {
		return fmt.Errorf("failed to update schedule tracking for %s: %w", site, err)
	}
	return nil
}
