package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"schoolops/scheduling/internal/lectures"
	"schoolops/scheduling/internal/sessions"
)

var ErrNotFound = errors.New("not_found")

// Group is the scheduling context of a group: its lecture progress and roster.
type Group struct {
	ID                    string
	Name                  string
	TotalLectures         int
	CurrentLectureNumber  int
	UpcomingLectureNumber int
	TeacherIDs            []string
}

func (g Group) Progress() lectures.Progress {
	return lectures.Progress{
		CurrentLectureNumber:  g.CurrentLectureNumber,
		UpcomingLectureNumber: g.UpcomingLectureNumber,
	}
}

func (s *Store) GetGroup(ctx context.Context, groupID string) (Group, error) {
	group := Group{ID: groupID}
	err := s.q.QueryRow(ctx, `
		SELECT name, total_lectures, current_lecture_number, upcoming_lecture_number
		FROM groups
		WHERE id = $1
	`, groupID).Scan(&group.Name, &group.TotalLectures, &group.CurrentLectureNumber, &group.UpcomingLectureNumber)
	if err != nil {
		return Group{}, notFound(err, "get group")
	}

	rows, err := s.q.Query(ctx, `
		SELECT teacher_id
		FROM group_teachers
		WHERE group_id = $1
		ORDER BY position, teacher_id
	`, groupID)
	if err != nil {
		return Group{}, errors.Wrap(err, "list group teachers")
	}
	teacherIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return Group{}, errors.Wrap(err, "scan group teachers")
	}
	group.TeacherIDs = teacherIDs
	return group, nil
}

func (s *Store) ListSessions(ctx context.Context, groupID string) ([]sessions.Session, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, group_id, day, start_minute, end_minute
		FROM group_sessions
		WHERE group_id = $1
		ORDER BY created_at, id
	`, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	defer rows.Close()

	var list []sessions.Session
	for rows.Next() {
		var (
			session     sessions.Session
			day         string
			start, stop int
		)
		if err := rows.Scan(&session.ID, &session.GroupID, &day, &start, &stop); err != nil {
			return nil, errors.Wrap(err, "scan session")
		}
		session.Day = sessions.Day(day)
		session.StartTime = sessions.TimeOfDay(start)
		session.EndTime = sessions.TimeOfDay(stop)
		list = append(list, session)
	}
	return list, errors.Wrap(rows.Err(), "iterate sessions")
}

func (s *Store) CreateSession(ctx context.Context, session sessions.Session) error {
	now := time.Now().UTC()
	_, err := s.q.Exec(ctx, `
		INSERT INTO group_sessions (id, group_id, day, start_minute, end_minute, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, session.ID, session.GroupID, string(session.Day), int(session.StartTime), int(session.EndTime), now, now)
	return errors.Wrap(err, "create session")
}

func (s *Store) UpdateSession(ctx context.Context, session sessions.Session) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE group_sessions
		SET day = $1, start_minute = $2, end_minute = $3, updated_at = $4
		WHERE id = $5 AND group_id = $6
	`, string(session.Day), int(session.StartTime), int(session.EndTime), time.Now().UTC(), session.ID, session.GroupID)
	if err != nil {
		return errors.Wrap(err, "update session")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, groupID, sessionID string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM group_sessions WHERE id = $1 AND group_id = $2`, sessionID, groupID)
	if err != nil {
		return errors.Wrap(err, "delete session")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListAssignments(ctx context.Context, groupID string) ([]lectures.Assignment, error) {
	rows, err := s.q.Query(ctx, `
		SELECT lecture_number, teacher_id, status, notes, overridden, status_overridden
		FROM lecture_assignments
		WHERE group_id = $1
		ORDER BY lecture_number
	`, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "list assignments")
	}
	defer rows.Close()

	var list []lectures.Assignment
	for rows.Next() {
		var (
			assignment lectures.Assignment
			status     string
		)
		if err := rows.Scan(&assignment.LectureNumber, &assignment.TeacherID, &status, &assignment.Notes, &assignment.Overridden, &assignment.StatusOverridden); err != nil {
			return nil, errors.Wrap(err, "scan assignment")
		}
		assignment.Status = lectures.Status(status)
		list = append(list, assignment)
	}
	return list, errors.Wrap(rows.Err(), "iterate assignments")
}

// ReplaceAssignments swaps a group's whole assignment list in one transaction.
func (s *Store) ReplaceAssignments(ctx context.Context, groupID string, assignments []lectures.Assignment) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.q.Exec(ctx, `DELETE FROM lecture_assignments WHERE group_id = $1`, groupID); err != nil {
			return errors.Wrap(err, "clear assignments")
		}
		if len(assignments) == 0 {
			return nil
		}
		now := time.Now().UTC()
		batch := &pgx.Batch{}
		for _, a := range assignments {
			batch.Queue(`
				INSERT INTO lecture_assignments (group_id, lecture_number, teacher_id, status, notes, overridden, status_overridden, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, groupID, a.LectureNumber, a.TeacherID, string(a.Status), a.Notes, a.Overridden, a.StatusOverridden, now)
		}
		results := tx.q.SendBatch(ctx, batch)
		for range assignments {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return errors.Wrap(err, "insert assignment")
			}
		}
		return errors.Wrap(results.Close(), "close assignment batch")
	})
}

func (s *Store) SaveAssignment(ctx context.Context, groupID string, a lectures.Assignment) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO lecture_assignments (group_id, lecture_number, teacher_id, status, notes, overridden, status_overridden, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (group_id, lecture_number) DO UPDATE
		SET teacher_id = EXCLUDED.teacher_id,
		    status = EXCLUDED.status,
		    notes = EXCLUDED.notes,
		    overridden = EXCLUDED.overridden,
		    status_overridden = EXCLUDED.status_overridden,
		    updated_at = EXCLUDED.updated_at
	`, groupID, a.LectureNumber, a.TeacherID, string(a.Status), a.Notes, a.Overridden, a.StatusOverridden, time.Now().UTC())
	return errors.Wrap(err, "save assignment")
}

// TeacherNames resolves display names; unknown ids are absent from the map.
func (s *Store) TeacherNames(ctx context.Context, teacherIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(teacherIDs))
	if len(teacherIDs) == 0 {
		return names, nil
	}
	rows, err := s.q.Query(ctx, `SELECT id::text, name FROM teachers WHERE id::text = ANY($1)`, teacherIDs)
	if err != nil {
		return nil, errors.Wrap(err, "list teacher names")
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, errors.Wrap(err, "scan teacher name")
		}
		names[id] = name
	}
	return names, errors.Wrap(rows.Err(), "iterate teacher names")
}

func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return errors.Wrap(err, op)
}
