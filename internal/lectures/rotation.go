package lectures

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInvalidLecture = errors.New("invalid_lecture")
	ErrInvalidStatus  = errors.New("invalid_status")
)

// Generate distributes lectures 1..totalLectures round-robin over teacherIDs,
// starting with the first teacher on lecture 1. An empty roster yields an
// empty list: the group is simply unassigned.
func Generate(teacherIDs []string, totalLectures, currentLectureNumber, upcomingLectureNumber int) []Assignment {
	if totalLectures < 0 {
		panic(fmt.Sprintf("lectures: total lectures must be >= 0, got %d", totalLectures))
	}
	if len(teacherIDs) == 0 {
		return []Assignment{}
	}
	progress := Progress{
		CurrentLectureNumber:  currentLectureNumber,
		UpcomingLectureNumber: upcomingLectureNumber,
	}
	assignments := make([]Assignment, 0, totalLectures)
	for n := 1; n <= totalLectures; n++ {
		assignments = append(assignments, Assignment{
			LectureNumber: n,
			TeacherID:     teacherIDs[(n-1)%len(teacherIDs)],
			Status:        DeriveState(n, nil, progress),
		})
	}
	return assignments
}

// Patch holds the fields of a manual edit. Nil fields are left untouched.
type Patch struct {
	TeacherID *string
	Status    *Status
	Notes     *string
}

// SetAssignment returns a copy of assignments with only lectureNumber's entry
// changed. When that lecture has no entry yet one is added in lecture order.
// The edited entry is flagged as overridden.
func SetAssignment(assignments []Assignment, lectureNumber int, patch Patch) ([]Assignment, error) {
	if lectureNumber < 1 {
		return nil, ErrInvalidLecture
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	updated := make([]Assignment, len(assignments), len(assignments)+1)
	copy(updated, assignments)

	idx := -1
	for i := range updated {
		if updated[i].LectureNumber == lectureNumber {
			idx = i
			break
		}
	}
	if idx < 0 {
		updated = append(updated, Assignment{LectureNumber: lectureNumber})
		idx = len(updated) - 1
	}

	entry := &updated[idx]
	if patch.TeacherID != nil {
		entry.TeacherID = *patch.TeacherID
	}
	if patch.Status != nil {
		entry.Status = *patch.Status
		entry.StatusOverridden = true
	}
	if patch.Notes != nil {
		entry.Notes = *patch.Notes
	}
	entry.Overridden = true

	sort.SliceStable(updated, func(i, j int) bool {
		return updated[i].LectureNumber < updated[j].LectureNumber
	})
	return updated, nil
}

// ReapplyOverrides carries manually edited entries of previous over a freshly
// generated list. Teacher and notes come from the edited entry; its status is
// kept only when the status itself was edited, otherwise the generated one
// stands. Overrides naming a teacher no longer on the roster, or a lecture
// past the new total, are dropped.
func ReapplyOverrides(generated, previous []Assignment, teacherIDs []string) []Assignment {
	roster := make(map[string]bool, len(teacherIDs))
	for _, id := range teacherIDs {
		roster[id] = true
	}
	merged := make([]Assignment, len(generated))
	copy(merged, generated)
	position := make(map[int]int, len(merged))
	for i, a := range merged {
		position[a.LectureNumber] = i
	}
	for _, prev := range previous {
		if !prev.Overridden {
			continue
		}
		i, ok := position[prev.LectureNumber]
		if !ok {
			continue
		}
		if prev.TeacherID != "" && !roster[prev.TeacherID] {
			continue
		}
		entry := &merged[i]
		entry.TeacherID = prev.TeacherID
		entry.Notes = prev.Notes
		entry.Overridden = true
		if prev.StatusOverridden {
			entry.Status = prev.Status
			entry.StatusOverridden = true
		}
	}
	return merged
}

// Distribution counts lectures per teacher.
func Distribution(assignments []Assignment) map[string]int {
	counts := make(map[string]int)
	for _, a := range assignments {
		if a.TeacherID == "" {
			continue
		}
		counts[a.TeacherID]++
	}
	return counts
}
