package observation

import (
	"fmt"

	"observatory-calendar-backend/internal/model"
)

// Formatted is an observation shaped like a calendar event, used by the
// schedule preview endpoint. Unlike imported reservations it keeps the
// upstream observation id and embeds the full observation record.
type Formatted struct {
	EventID         string       `json:"event_id"`
	Start           string       `json:"start"`
	End             string       `json:"end"`
	Creator         string       `json:"creator"`
	CreatorID       string       `json:"creator_id"`
	LastModified    string       `json:"last_modified"`
	ReservationType string       `json:"reservation_type"`
	Origin          string       `json:"origin"`
	ResourceID      string       `json:"resourceId"`
	Site            string       `json:"site"`
	Title           string       `json:"title"`
	ObservationType string       `json:"observation_type"`
	State           string       `json:"observation_state"`
	RequestState    string       `json:"request_state"`
	Observation     *Observation `json:"observation_data"`
}

// Format shapes an observation like a calendar event for the given logical
// site.
func Format(obs *Observation, site string) Formatted {
	requestState := ""
	if obs.Request != nil {
		requestState = obs.Request.State
	}

	return Formatted{
		EventID:         obs.ID.String(),
		Start:           obs.Start,
		End:             obs.End,
		Creator:         obs.Submitter,
		CreatorID:       obs.Submitter + "#LCO",
		LastModified:    obs.Modified,
		ReservationType: "observation",
		Origin:          model.OriginScheduler,
		ResourceID:      site,
		Site:            site,
		Title:           fmt.Sprintf("%s (via LCO)", obs.Name),
		ObservationType: obs.ObservationType,
		State:           obs.State,
		RequestState:    requestState,
		Observation:     obs,
	}
}
