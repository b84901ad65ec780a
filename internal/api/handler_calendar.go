package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"observatory-calendar-backend/internal/model"
	"observatory-calendar-backend/internal/parse"
	"observatory-calendar-backend/internal/store"
)

// utcTimestamp formats the current time the way event timestamps are stored.
func utcTimestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

// AddEvent handles POST /calendar/events.
func (h *Handler) AddEvent(c *gin.Context) {
	var reservation model.Reservation
	if err := c.ShouldBindJSON(&reservation); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for key, value := range map[string]string{
		"event_id": reservation.EventID,
		"start":    reservation.Start,
		"site":     reservation.Site,
	} {
		if value == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("missing required key %s", key)})
			return
		}
	}

	reservation.LastModified = utcTimestamp()
	if reservation.ProjectID == "" {
		reservation.ProjectID = model.ProjectIDNone
	}

	if err := h.store.CreateReservation(c.Request.Context(), &reservation); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"new_calendar_event": reservation})
}

type deleteEventRequest struct {
	EventID string `json:"event_id" binding:"required"`
	Start   string `json:"start" binding:"required"`
}

// DeleteEvent handles POST /calendar/delete-event. Only the event's creator
// or an admin may delete it.
func (h *Handler) DeleteEvent(c *gin.Context) {
	var req deleteEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, isAdmin := requesterIdentity(c)

	err := h.store.DeleteReservation(c.Request.Context(), req.EventID, req.Start, userID, isAdmin)
	switch {
	case errors.Is(err, store.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "You may only modify your own events."})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"event_id": req.EventID, "start": req.Start})
	}
}

type modifyEventRequest struct {
	OriginalEvent struct {
		EventID string `json:"event_id" binding:"required"`
		Start   string `json:"start" binding:"required"`
	} `json:"originalEvent" binding:"required"`
	ModifiedEvent model.Reservation `json:"modifiedEvent" binding:"required"`
}

// ModifyEvent handles POST /calendar/modify-event. The start time is part of
// the event's key, so a modification replaces the stored reservation. The
// event id and creator always carry over from the original.
func (h *Handler) ModifyEvent(c *gin.Context) {
	var req modifyEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	original, err := h.store.EventByID(c.Request.Context(), req.OriginalEvent.EventID, req.OriginalEvent.Start)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	userID, isAdmin := requesterIdentity(c)
	if original.CreatorID != userID && !isAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "You may only modify your own events."})
		return
	}

	modified := req.ModifiedEvent
	modified.EventID = original.EventID
	modified.CreatorID = original.CreatorID
	if modified.Start == "" {
		modified.Start = original.Start
	}
	modified.LastModified = utcTimestamp()

	if err := h.store.ReplaceReservation(c.Request.Context(), original.EventID, original.Start, &modified); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, modified)
}

type addProjectsToEventsRequest struct {
	ProjectID string           `json:"project_id" binding:"required"`
	Events    []store.EventKey `json:"events" binding:"required"`
}

// AddProjectsToEvents handles POST /calendar/add-projects-to-events: links a
// project id to each named calendar event.
func (h *Handler) AddProjectsToEvents(c *gin.Context) {
	var req addProjectsToEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.SetProjectForEvents(c.Request.Context(), req.ProjectID, req.Events); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": len(req.Events)})
}

type removeProjectFromEventsRequest struct {
	Events []string `json:"events" binding:"required"`
}

// RemoveProjectFromEvents handles POST /calendar/remove-project-from-events:
// resets the named events to the sentinel project id.
func (h *Handler) RemoveProjectFromEvents(c *gin.Context) {
	var req removeProjectFromEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.RemoveProjectFromEvents(c.Request.Context(), req.Events); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": len(req.Events)})
}

type siteEventsRequest struct {
	Site               string `json:"site"`
	Start              string `json:"start"`
	End                string `json:"end"`
	FullProjectDetails bool   `json:"full_project_details"`
}

// siteEvent is a reservation optionally joined with its full project body.
type siteEvent struct {
	model.Reservation
	Project map[string]any `json:"project,omitempty"`
}

// SiteEvents handles POST /calendar/siteevents: all reservations at a site
// ending within [start, end], optionally with full project details.
func (h *Handler) SiteEvents(c *gin.Context) {
	var req siteEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for key, value := range map[string]string{"site": req.Site, "start": req.Start, "end": req.End} {
		if value == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("missing required key %s", key)})
			return
		}
	}

	reservations, err := h.store.SiteEventsInRange(c.Request.Context(), req.Site, req.Start, req.End)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	events := make([]siteEvent, 0, len(reservations))
	for _, reservation := range reservations {
		event := siteEvent{Reservation: reservation}
		if req.FullProjectDetails {
			event.Project = h.projectDetails(c, reservation.ProjectID)
		}
		events = append(events, event)
	}

	c.JSON(http.StatusOK, events)
}

// projectDetails resolves a project id of the form "name#created-at" into the
// full project body. Unresolvable projects are left off the event.
func (h *Handler) projectDetails(c *gin.Context, projectID string) map[string]any {
	parsed, err := parse.ProjectID(projectID)
	if err != nil {
		return nil
	}

	project, err := h.projects.Get(c.Request.Context(), parsed.Name, parsed.CreatedAt)
	if err != nil {
		return nil
	}
	return project
}

type eventAtTimeRequest struct {
	Site string `json:"site" binding:"required"`
	Time string `json:"time" binding:"required"`
}

// EventAtTime handles POST /calendar/event-at-time: reservations active at
// the given instant.
func (h *Handler) EventAtTime(c *gin.Context) {
	var req eventAtTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.store.EventsAtTime(c.Request.Context(), req.Site, req.Time)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, events)
}

type userEventsEndingAfterRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Time   string `json:"time" binding:"required"`
}

// UserEventsEndingAfter handles POST /calendar/user-events-ending-after-time:
// the user's reservations across all sites still ending after the instant.
func (h *Handler) UserEventsEndingAfter(c *gin.Context) {
	var req userEventsEndingAfterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.store.UserEventsEndingAfter(c.Request.Context(), req.UserID, req.Time)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, events)
}

type isUserScheduledRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Site   string `json:"site" binding:"required"`
	Time   string `json:"time" binding:"required"`
}

// IsUserScheduled handles POST /calendar/is-user-scheduled: whether the user
// holds a reservation at the site covering the given instant.
func (h *Handler) IsUserScheduled(c *gin.Context) {
	var req isUserScheduledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.store.EventsAtTime(c.Request.Context(), req.Site, req.Time)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	scheduled := false
	for _, event := range events {
		if event.CreatorID == req.UserID {
			scheduled = true
			break
		}
	}
	c.JSON(http.StatusOK, scheduled)
}

// DoesConflictingEventExist handles POST /calendar/does-conflicting-event-exist:
// whether a different user holds a reservation at the site covering the
// instant. With no reservations at all the site is open to anyone.
func (h *Handler) DoesConflictingEventExist(c *gin.Context) {
	var req isUserScheduledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.store.EventsAtTime(c.Request.Context(), req.Site, req.Time)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	conflict := false
	for _, event := range events {
		if event.CreatorID != req.UserID {
			conflict = true
			break
		}
	}
	c.JSON(http.StatusOK, conflict)
}
