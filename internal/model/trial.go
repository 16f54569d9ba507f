package model

import "strings"

// RecruitmentStatus is a trial's registry status.
type RecruitmentStatus string

const (
	StatusRecruiting    RecruitmentStatus = "recruiting"
	StatusNotRecruiting RecruitmentStatus = "not_recruiting"
	StatusCompleted     RecruitmentStatus = "completed"
	StatusTerminated    RecruitmentStatus = "terminated"
	StatusWithdrawn     RecruitmentStatus = "withdrawn"
	StatusUnknown       RecruitmentStatus = "unknown"
)

// ParseRecruitmentStatus maps a registry status cell to a RecruitmentStatus.
func ParseRecruitmentStatus(s string) RecruitmentStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "recruiting", "enrolling by invitation":
		return StatusRecruiting
	case "active, not recruiting", "not yet recruiting":
		return StatusNotRecruiting
	case "completed":
		return StatusCompleted
	case "terminated", "suspended":
		return StatusTerminated
	case "withdrawn":
		return StatusWithdrawn
	default:
		return StatusUnknown
	}
}

// Trial is one row of the registry export. Loaded once at startup and
// read-only for the lifetime of the process.
type Trial struct {
	NCTID           string            `json:"nct_id"`
	Title           string            `json:"title"`
	URL             string            `json:"url,omitempty"`
	Status          RecruitmentStatus `json:"status"`
	Conditions      []string          `json:"conditions"`
	Sex             Sex               `json:"sex"`
	MinAge          int               `json:"min_age"` // 0 = unrestricted
	MaxAge          int               `json:"max_age"` // 0 = unrestricted
	Phases          []string          `json:"phases"`
	StudyType       string            `json:"study_type,omitempty"`
	Locations       []string          `json:"locations,omitempty"`
	EligibilityText string            `json:"eligibility_text,omitempty"`
}

// ConditionText returns the conditions joined for substring matching.
func (t *Trial) ConditionText() string {
	return strings.ToLower(strings.Join(t.Conditions, "; "))
}

// PhaseText returns the phases joined for substring matching.
func (t *Trial) PhaseText() string {
	return strings.ToLower(strings.Join(t.Phases, "; "))
}

// HasAgeRestriction reports whether either age bound is set.
func (t *Trial) HasAgeRestriction() bool {
	return t.MinAge > 0 || t.MaxAge > 0
}

// AgeEligible reports whether age falls within [MinAge, MaxAge], both
// bounds inclusive. An unset bound does not constrain.
func (t *Trial) AgeEligible(age int) bool {
	if age == AgeUnknown {
		return !t.HasAgeRestriction()
	}
	if t.MinAge > 0 && age < t.MinAge {
		return false
	}
	if t.MaxAge > 0 && age > t.MaxAge {
		return false
	}
	return true
}

// SexEligible reports whether the trial accepts the given sex.
// Trials with no restriction accept everyone; an unknown patient sex
// only satisfies unrestricted trials.
func (t *Trial) SexEligible(sex Sex) bool {
	if t.Sex == SexAll || t.Sex == "" {
		return true
	}
	return sex != SexUnknown && t.Sex == sex
}
