package observation

import "fmt"

// Validate performs a structural check of an upstream observation before
// translation. It returns false with the first failure reason found; it does
// not collect all errors.
func Validate(obs *Observation) (bool, string) {
	topLevel := []struct {
		key   string
		value string
	}{
		{"site", obs.Site},
		{"start", obs.Start},
		{"end", obs.End},
		{"submitter", obs.Submitter},
		{"modified", obs.Modified},
		{"created", obs.Created},
		{"name", obs.Name},
		{"telescope", obs.Telescope},
		{"observation_type", obs.ObservationType},
	}
	for _, field := range topLevel {
		if field.value == "" {
			return false, fmt.Sprintf("missing required key: %s", field.key)
		}
	}
	if obs.Request == nil {
		return false, "missing required key: request"
	}

	for i, conf := range obs.Request.Configurations {
		if ok, reason := validateConfiguration(&conf); !ok {
			return false, fmt.Sprintf("configuration %d failed validation: %s", i, reason)
		}
	}

	return true, "validation successful"
}

func validateConfiguration(conf *Configuration) (bool, string) {
	if conf.Type == "" || conf.Constraints == nil || conf.Target == nil || len(conf.InstrumentConfigs) == 0 {
		return false, "missing required keys in configuration"
	}
	if conf.Target.RA == nil || conf.Target.Dec == nil {
		return false, "target failed validation"
	}
	if conf.Constraints.MaxAirmass == nil || conf.Constraints.MaxLunarPhase == nil || conf.Constraints.MinLunarDistance == nil {
		return false, "constraints failed validation"
	}
	for _, instConfig := range conf.InstrumentConfigs {
		if !validInstrumentConfig(&instConfig) {
			return false, "instrument configs failed validation"
		}
	}
	return true, ""
}

func validInstrumentConfig(ic *InstrumentConfig) bool {
	if ic.ExposureCount == nil || ic.ExposureTime == nil || ic.Mode == "" {
		return false
	}
	if ic.OpticalElements == nil || ic.OpticalElements.Filter == "" {
		return false
	}
	if ic.ExtraParams == nil {
		return false
	}
	return ic.ExtraParams.OffsetRA != nil && ic.ExtraParams.OffsetDec != nil && ic.ExtraParams.RotatorAngle != nil
}
