package sessions

import (
	"fmt"
	"strings"
)

const (
	ErrInvalidDay       = "invalid_day"
	ErrInvalidTimeRange = "invalid_time_range"
	ErrOverlapConflict  = "overlap_conflict"
)

type Violation struct {
	Code      string `json:"code"`
	SessionID string `json:"session,omitempty"`
	Message   string `json:"message"`
}

// ValidationError carries every rule a candidate session broke.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	messages := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		messages = append(messages, v.Message)
	}
	return "invalid session: " + strings.Join(messages, "; ")
}

// Has reports whether a violation with the given code was recorded.
func (e *ValidationError) Has(code string) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// Conflicts lists the ids of the existing sessions the candidate overlaps.
func (e *ValidationError) Conflicts() []string {
	var ids []string
	for _, v := range e.Violations {
		if v.Code == ErrOverlapConflict {
			ids = append(ids, v.SessionID)
		}
	}
	return ids
}

// Validate checks candidate against the group's existing sessions. The session
// with id excludeID is skipped so an edit is never compared with itself.
// Returns nil or a *ValidationError holding all violations.
func Validate(candidate SessionDraft, existing []Session, excludeID string) error {
	var violations []Violation

	if !candidate.Day.Allowed() {
		violations = append(violations, Violation{
			Code:    ErrInvalidDay,
			Message: fmt.Sprintf("%s is not a teaching day", dayName(candidate.Day)),
		})
	}

	rangeOK := candidate.StartTime.Valid() && candidate.EndTime.Valid() && candidate.StartTime < candidate.EndTime
	if !rangeOK {
		violations = append(violations, Violation{
			Code:    ErrInvalidTimeRange,
			Message: fmt.Sprintf("start time %s must be before end time %s", candidate.StartTime, candidate.EndTime),
		})
	}

	if rangeOK {
		for _, other := range existing {
			if excludeID != "" && other.ID == excludeID {
				continue
			}
			if !Overlaps(candidate, other.Draft()) {
				continue
			}
			violations = append(violations, Violation{
				Code:      ErrOverlapConflict,
				SessionID: other.ID,
				Message: fmt.Sprintf("overlaps %s %s-%s (%s)",
					other.Day, other.StartTime, other.EndTime, other.ID),
			})
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

func dayName(d Day) string {
	if d == "" {
		return "empty day"
	}
	return string(d)
}
