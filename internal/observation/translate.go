package observation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"observatory-calendar-backend/internal/model"
)

// Project is the unit of observing work created alongside an imported
// reservation. It is the request body sent to the projects collaborator.
type Project struct {
	UserID      string `json:"user_id"`
	ProjectName string `json:"project_name"`
	CreatedAt   string `json:"created_at"`
	Origin      string `json:"origin"`

	// The raw upstream observation, kept for reference.
	FullObservation string `json:"full_lco_observation,omitempty"`

	ProjectID string `json:"project_id"`

	// From the observation these mark the window of the already-created
	// schedule rather than a scheduling request, but the meaning is compatible.
	StartDate  string `json:"start_date"`
	ExpiryDate string `json:"expiry_date"`

	ProjectConstraints  ProjectConstraints `json:"project_constraints"`
	ProjectCreator      ProjectCreator     `json:"project_creator"`
	ProjectPriority     string             `json:"project_priority"`
	ProjectSites        []string           `json:"project_sites"`
	ProjectNote         string             `json:"project_note"`
	ScheduledWithEvents []string           `json:"scheduled_with_events"`

	ProjectTargets []Target      `json:"project_targets"`
	Exposures      []ExposureSet `json:"exposures"`

	// Remaining and ProjectData are index-aligned with Exposures:
	// Remaining[i] counts exposures left in set i, ProjectData[i] collects
	// the completed filenames for set i.
	Remaining   []int      `json:"remaining"`
	ProjectData [][]string `json:"project_data"`
}

// ProjectConstraints carries the observing constraints in calendar conventions.
type ProjectConstraints struct {
	RAOffset        float64 `json:"ra_offset"`
	RAOffsetUnits   string  `json:"ra_offset_units"`
	DecOffset       float64 `json:"dec_offset"`
	DecOffsetUnits  string  `json:"dec_offset_units"`
	Defocus         float64 `json:"defocus"`
	LunarPhaseMax   float64 `json:"lunar_phase_max"`
	LunarDistMin    float64 `json:"lunar_dist_min"`
	MaxAirmass      float64 `json:"max_airmass"`
	ProjectIsActive bool    `json:"project_is_active"`
	StartDate       string  `json:"start_date"`
	ExpiryDate      string  `json:"expiry_date"`
}

// ProjectCreator identifies the submitting user.
type ProjectCreator struct {
	Username string `json:"username"`
	UserID   string `json:"user_id"`
}

// ExposureSet is one requested exposure series within a project.
type ExposureSet struct {
	Exposure  float64 `json:"exposure"`
	Count     int     `json:"count"`
	Filter    string  `json:"filter"`
	ImType    string  `json:"imtype"`
	Zoom      string  `json:"zoom"`
	Angle     float64 `json:"angle"`
	Width     string  `json:"width"`
	Height    string  `json:"height"`
	OffsetRA  float64 `json:"offset_ra"`
	OffsetDec float64 `json:"offset_dec"`
	Defocus   float64 `json:"defocus"`
}

const (
	priorityStandard     = "standard"
	priorityTimeCritical = "time_critical"
)

// truncateSubseconds drops fractional seconds from an ISO timestamp, e.g.
// "2025-02-15T10:00:00.123456Z" -> "2025-02-15T10:00:00Z".
func truncateSubseconds(ts string) string {
	if i := strings.IndexByte(ts, '.'); i >= 0 {
		return ts[:i] + "Z"
	}
	return ts
}

func priorityFor(observationType string) string {
	if observationType == TypeRapidResponse || observationType == TypeTimeCritical {
		return priorityTimeCritical
	}
	return priorityStandard
}

// ToProject translates a validated observation into a project for the given
// logical site. Only the first configuration is used; multi-configuration
// observations are not fully supported. The input is never mutated.
func ToProject(obs *Observation, site string) (*Project, error) {
	if ok, reason := Validate(obs); !ok {
		return nil, fmt.Errorf("observation failed validation: %s", reason)
	}
	if len(obs.Request.Configurations) == 0 {
		return nil, fmt.Errorf("observation %s has no configurations", obs.ID)
	}

	conf := obs.Request.Configurations[0]
	firstInst := conf.InstrumentConfigs[0]

	createdAt := truncateSubseconds(obs.Created)
	startDate := truncateSubseconds(obs.Start)
	expiryDate := truncateSubseconds(obs.End)
	userID := obs.Submitter + "#LCO"

	raw, err := json.Marshal(obs)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize observation %s: %w", obs.ID, err)
	}

	// Convert right ascension from degrees to hours to fit calendar defaults.
	target := *conf.Target
	raHours := *conf.Target.RA / 15
	target.RA = &raHours

	project := &Project{
		UserID:          userID,
		ProjectName:     obs.Name,
		CreatedAt:       createdAt,
		Origin:          model.OriginScheduler,
		FullObservation: string(raw),
		ProjectID:       fmt.Sprintf("%s#%s", obs.Name, createdAt),
		StartDate:       startDate,
		ExpiryDate:      expiryDate,
		ProjectConstraints: ProjectConstraints{
			RAOffset:       *firstInst.ExtraParams.OffsetRA,
			RAOffsetUnits:  "deg",
			DecOffset:      *firstInst.ExtraParams.OffsetDec,
			DecOffsetUnits: "deg",
			Defocus:        defocusOrZero(firstInst.ExtraParams),
			// Upstream reports lunar phase in [0,1]; the calendar uses percent.
			LunarPhaseMax:   *conf.Constraints.MaxLunarPhase * 100,
			LunarDistMin:    *conf.Constraints.MinLunarDistance,
			MaxAirmass:      *conf.Constraints.MaxAirmass,
			ProjectIsActive: true,
			StartDate:       startDate,
			ExpiryDate:      expiryDate,
		},
		ProjectCreator: ProjectCreator{
			Username: obs.Submitter + "(via LCO)",
			UserID:   userID,
		},
		ProjectPriority: priorityFor(obs.ObservationType),
		ProjectSites:    []string{site},
		ProjectNote:     "Created automatically with the LCO scheduler",
		ProjectTargets:  []Target{target},
	}

	for _, instConfig := range conf.InstrumentConfigs {
		set := ExposureSet{
			Exposure:  *instConfig.ExposureTime,
			Count:     *instConfig.ExposureCount,
			Filter:    instConfig.OpticalElements.Filter,
			ImType:    conf.Type,
			Zoom:      instConfig.Mode,
			Angle:     *instConfig.ExtraParams.RotatorAngle,
			Width:     "0.0",
			Height:    "0.0",
			OffsetRA:  *instConfig.ExtraParams.OffsetRA,
			OffsetDec: *instConfig.ExtraParams.OffsetDec,
			Defocus:   defocusOrZero(instConfig.ExtraParams),
		}
		project.Exposures = append(project.Exposures, set)
		project.Remaining = append(project.Remaining, set.Count)
		project.ProjectData = append(project.ProjectData, []string{})
	}

	return project, nil
}

func defocusOrZero(params *ExtraParams) float64 {
	if params.Defocus != nil {
		return *params.Defocus
	}
	return 0
}

// ToReservation translates an observation and its translated project into a
// calendar reservation for the given logical site, generating a fresh event
// id. ToProject must be run first since the reservation embeds the project's
// derived id.
func ToReservation(obs *Observation, project *Project, site string) (*model.Reservation, error) {
	if project == nil {
		return nil, fmt.Errorf("observation %s translated without a project", obs.ID)
	}
	if ok, reason := Validate(obs); !ok {
		return nil, fmt.Errorf("observation failed validation: %s", reason)
	}

	return &model.Reservation{
		EventID:         uuid.New().String(),
		Start:           obs.Start,
		End:             obs.End,
		Site:            site,
		Creator:         obs.Submitter,
		CreatorID:       obs.Submitter + "#LCO",
		LastModified:    obs.Modified,
		ProjectID:       project.ProjectID,
		ProjectPriority: priorityFor(obs.ObservationType),
		ReservationType: "project",
		ReservationNote: "This event was created and scheduled by the LCO Scheduler",
		Origin:          model.OriginScheduler,
		ResourceID:      site,
		Title:           fmt.Sprintf("%s (via LCO)", obs.Name),
	}, nil
}

// Translate sequences the two translation stages and links the project back
// to its reservation.
func Translate(obs *Observation, site string) (*Project, *model.Reservation, error) {
	project, err := ToProject(obs, site)
	if err != nil {
		return nil, nil, err
	}
	reservation, err := ToReservation(obs, project, site)
	if err != nil {
		return nil, nil, err
	}
	project.ScheduledWithEvents = []string{reservation.EventID}
	return project, reservation, nil
}
