package lectures

import (
	"fmt"
	"strings"
)

// Status is the progress state shown for one lecture of a group.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCurrent   Status = "current"
	StatusNext      Status = "next"
	StatusUpcoming  Status = "upcoming"
	StatusDismissed Status = "dismissed"
	StatusScheduled Status = "scheduled"
)

var Statuses = []Status{
	StatusCompleted,
	StatusCurrent,
	StatusNext,
	StatusUpcoming,
	StatusDismissed,
	StatusScheduled,
}

func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown lecture status %q", value)
	}
	return status, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusCompleted, StatusCurrent, StatusNext, StatusUpcoming, StatusDismissed, StatusScheduled:
		return true
	}
	return false
}

// Manual reports whether the status can only come from an operator decision.
func (s Status) Manual() bool {
	return s == StatusDismissed || s == StatusScheduled
}

// Progress is the group's position in its lecture sequence.
type Progress struct {
	CurrentLectureNumber  int
	UpcomingLectureNumber int
}

// Assignment binds one lecture of a group to a teacher.
type Assignment struct {
	LectureNumber int
	TeacherID     string
	Status        Status
	Notes         string
	// Overridden marks entries edited by hand after generation.
	// StatusOverridden is set only when the edit named a status.
	Overridden       bool
	StatusOverridden bool
}

// DeriveState returns the explicit status when one is recorded; otherwise the
// state follows from the lecture's position relative to progress.
// A lecture number below 1 is a caller bug and panics.
func DeriveState(lectureNumber int, explicit *Assignment, progress Progress) Status {
	if lectureNumber < 1 {
		panic(fmt.Sprintf("lectures: lecture number must be >= 1, got %d", lectureNumber))
	}
	if explicit != nil && explicit.Status != "" {
		return explicit.Status
	}
	return positionalState(lectureNumber, progress)
}

func positionalState(lectureNumber int, progress Progress) Status {
	switch {
	case lectureNumber < progress.CurrentLectureNumber:
		return StatusCompleted
	case lectureNumber == progress.CurrentLectureNumber:
		return StatusCurrent
	case lectureNumber == progress.UpcomingLectureNumber:
		return StatusNext
	default:
		return StatusUpcoming
	}
}

// Slot is one row of a group's lecture board.
type Slot struct {
	LectureNumber int
	State         Status
	TeacherID     string
	Notes         string
	Assigned      bool
	Overridden    bool
}

// Board lays out lectures 1..totalLectures with their derived state.
func Board(totalLectures int, assignments []Assignment, progress Progress) []Slot {
	if totalLectures < 0 {
		panic(fmt.Sprintf("lectures: total lectures must be >= 0, got %d", totalLectures))
	}
	byLecture := indexByLecture(assignments)
	slots := make([]Slot, 0, totalLectures)
	for n := 1; n <= totalLectures; n++ {
		slot := Slot{LectureNumber: n}
		if a, ok := byLecture[n]; ok {
			slot.State = DeriveState(n, &a, progress)
			slot.TeacherID = a.TeacherID
			slot.Notes = a.Notes
			slot.Assigned = true
			slot.Overridden = a.Overridden
		} else {
			slot.State = DeriveState(n, nil, progress)
		}
		slots = append(slots, slot)
	}
	return slots
}

func indexByLecture(assignments []Assignment) map[int]Assignment {
	index := make(map[int]Assignment, len(assignments))
	for _, a := range assignments {
		index[a.LectureNumber] = a
	}
	return index
}
