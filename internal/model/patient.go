package model

// Sex is a patient's or trial's eligible sex.
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
	// SexAll marks a trial with no sex restriction.
	SexAll Sex = "all"
)

// SmokingStatus captures a patient's smoking history as stated in free text.
type SmokingStatus string

const (
	SmokingCurrent SmokingStatus = "smoker"
	SmokingFormer  SmokingStatus = "former smoker"
	SmokingNever   SmokingStatus = "non-smoker"
	SmokingUnknown SmokingStatus = "unknown"
)

// AgeUnknown marks an age that could not be parsed from the query text.
const AgeUnknown = 0

// EntitySet holds the typed keywords extracted from a patient description.
// Buckets are deduplicated case-insensitively and hold lowercase terms.
type EntitySet struct {
	Conditions   []string `json:"conditions"`
	Demographics []string `json:"demographics"`
	Treatments   []string `json:"treatments"`
	LabValues    []string `json:"lab_values"`
}

// Empty reports whether no entities were extracted in any bucket.
func (e *EntitySet) Empty() bool {
	if e == nil {
		return true
	}
	return len(e.Conditions) == 0 && len(e.Demographics) == 0 &&
		len(e.Treatments) == 0 && len(e.LabValues) == 0
}

// All returns every extracted term across buckets, in bucket order.
func (e *EntitySet) All() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.Conditions)+len(e.Demographics)+len(e.Treatments)+len(e.LabValues))
	out = append(out, e.Conditions...)
	out = append(out, e.Demographics...)
	out = append(out, e.Treatments...)
	out = append(out, e.LabValues...)
	return out
}

// PatientQuery is one free-text patient description plus the structured
// fields derived from it. Created per request, immutable after extraction,
// and discarded after the matching pass.
type PatientQuery struct {
	RawText  string        `json:"raw_text"`
	Entities EntitySet     `json:"entities"`
	Age      int           `json:"age"` // AgeUnknown when not stated
	Sex      Sex           `json:"sex"`
	Smoking  SmokingStatus `json:"smoking"`
	Location string        `json:"location,omitempty"`
}
