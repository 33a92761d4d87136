package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"schoolops/scheduling/internal/db"
	"schoolops/scheduling/internal/lectures"
	"schoolops/scheduling/internal/lock"
	"schoolops/scheduling/internal/metrics"
	"schoolops/scheduling/internal/sessions"
)

const (
	ErrInvalidGroupID   = "invalid_group_id"
	ErrInvalidSessionID = "invalid_session_id"
	ErrGroupNotFound    = "group_not_found"
	ErrSessionNotFound  = "session_not_found"
	ErrGroupBusy        = "group_busy"
	ErrInvalidLecture   = "invalid_lecture"
	ErrInvalidStatus    = "invalid_status"
	ErrInvalidTeacher   = "invalid_teacher"
	ErrServerError      = "server_error"
)

type Error struct {
	Code string
}

func (e *Error) Error() string {
	return e.Code
}

type GroupRepository interface {
	GetGroup(ctx context.Context, groupID string) (db.Group, error)
	ListSessions(ctx context.Context, groupID string) ([]sessions.Session, error)
	CreateSession(ctx context.Context, session sessions.Session) error
	UpdateSession(ctx context.Context, session sessions.Session) error
	DeleteSession(ctx context.Context, groupID, sessionID string) error
	ListAssignments(ctx context.Context, groupID string) ([]lectures.Assignment, error)
	ReplaceAssignments(ctx context.Context, groupID string, assignments []lectures.Assignment) error
	SaveAssignment(ctx context.Context, groupID string, assignment lectures.Assignment) error
}

type TeacherDirectory interface {
	TeacherNames(ctx context.Context, teacherIDs []string) (map[string]string, error)
}

// Scheduler runs every read-validate-write cycle of a group under that group's lock.
type Scheduler struct {
	repo     GroupRepository
	teachers TeacherDirectory
	locker   lock.Locker
	logger   *zap.Logger
	newID    func() string
}

func NewScheduler(repo GroupRepository, teachers TeacherDirectory, locker lock.Locker, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		repo:     repo,
		teachers: teachers,
		locker:   locker,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

type Schedule struct {
	GroupID   string
	GroupName string
	Sessions  []sessions.Session
	Summary   string
	Label     string
}

type BoardSlot struct {
	lectures.Slot
	TeacherName string
}

type LectureBoard struct {
	GroupID       string
	TotalLectures int
	Progress      lectures.Progress
	Slots         []BoardSlot
	Distribution  map[string]int
}

func (s *Scheduler) AddSession(ctx context.Context, groupID string, draft sessions.SessionDraft) (sessions.Session, error) {
	if err := checkUUID(groupID, ErrInvalidGroupID); err != nil {
		return sessions.Session{}, err
	}
	unlock, err := s.lock(ctx, groupID)
	if err != nil {
		return sessions.Session{}, err
	}
	defer unlock()

	if _, err := s.group(ctx, groupID); err != nil {
		return sessions.Session{}, err
	}
	existing, err := s.repo.ListSessions(ctx, groupID)
	if err != nil {
		return sessions.Session{}, s.serverError("list sessions", err)
	}
	if err := s.validate(draft, existing, ""); err != nil {
		return sessions.Session{}, err
	}

	session := sessions.Session{
		ID:        s.newID(),
		GroupID:   groupID,
		Day:       draft.Day,
		StartTime: draft.StartTime,
		EndTime:   draft.EndTime,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return sessions.Session{}, s.serverError("create session", err)
	}
	metrics.SessionWrites.WithLabelValues("create").Inc()
	s.logger.Info("session created",
		zap.String("group_id", groupID),
		zap.String("session_id", session.ID),
		zap.String("label", sessions.Label(session)),
	)
	return session, nil
}

func (s *Scheduler) EditSession(ctx context.Context, groupID, sessionID string, draft sessions.SessionDraft) (sessions.Session, error) {
	if err := checkUUID(groupID, ErrInvalidGroupID); err != nil {
		return sessions.Session{}, err
	}
	if err := checkUUID(sessionID, ErrInvalidSessionID); err != nil {
		return sessions.Session{}, err
	}
	unlock, err := s.lock(ctx, groupID)
	if err != nil {
		return sessions.Session{}, err
	}
	defer unlock()

	if _, err := s.group(ctx, groupID); err != nil {
		return sessions.Session{}, err
	}
	existing, err := s.repo.ListSessions(ctx, groupID)
	if err != nil {
		return sessions.Session{}, s.serverError("list sessions", err)
	}
	found := false
	for _, session := range existing {
		if session.ID == sessionID {
			found = true
			break
		}
	}
	if !found {
		return sessions.Session{}, &Error{Code: ErrSessionNotFound}
	}
	if err := s.validate(draft, existing, sessionID); err != nil {
		return sessions.Session{}, err
	}

	session := sessions.Session{
		ID:        sessionID,
		GroupID:   groupID,
		Day:       draft.Day,
		StartTime: draft.StartTime,
		EndTime:   draft.EndTime,
	}
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return sessions.Session{}, &Error{Code: ErrSessionNotFound}
		}
		return sessions.Session{}, s.serverError("update session", err)
	}
	metrics.SessionWrites.WithLabelValues("update").Inc()
	s.logger.Info("session updated",
		zap.String("group_id", groupID),
		zap.String("session_id", sessionID),
		zap.String("label", sessions.Label(session)),
	)
	return session, nil
}

func (s *Scheduler) RemoveSession(ctx context.Context, groupID, sessionID string) error {
	if err := checkUUID(groupID, ErrInvalidGroupID); err != nil {
		return err
	}
	if err := checkUUID(sessionID, ErrInvalidSessionID); err != nil {
		return err
	}
	unlock, err := s.lock(ctx, groupID)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.group(ctx, groupID); err != nil {
		return err
	}
	if err := s.repo.DeleteSession(ctx, groupID, sessionID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return &Error{Code: ErrSessionNotFound}
		}
		return s.serverError("delete session", err)
	}
	metrics.SessionWrites.WithLabelValues("delete").Inc()
	s.logger.Info("session removed", zap.String("group_id", groupID), zap.String("session_id", sessionID))
	return nil
}

// Schedule returns the group's weekly sessions in canonical order along with
// their summary texts.
func (s *Scheduler) Schedule(ctx context.Context, groupID string) (Schedule, error) {
	if err := checkUUID(groupID, ErrInvalidGroupID); err != nil {
		return Schedule{}, err
	}
	group, err := s.group(ctx, groupID)
	if err != nil {
		return Schedule{}, err
	}
	list, err := s.repo.ListSessions(ctx, groupID)
	if err != nil {
		return Schedule{}, s.serverError("list sessions", err)
	}
	return Schedule{
		GroupID:   groupID,
		GroupName: group.Name,
		Sessions:  sessions.SortSessions(list),
		Summary:   sessions.Summarize(list),
		Label:     sessions.DisplayLabel(group.Name, list),
	}, nil
}

// RegenerateAssignments replaces the group's assignments with a fresh
// round-robin over its roster. With preserveOverrides, manual edits that still
// fit the new roster and lecture count are carried over.
func (s *Scheduler) RegenerateAssignments(ctx context.Context, groupID string, preserveOverrides bool) ([]lectures.Assignment, error) {
	if err := checkUUID(groupID, ErrInvalidGroupID); err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, groupID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	group, err := s.group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	generated := lectures.Generate(group.TeacherIDs, group.TotalLectures, group.CurrentLectureNumber, group.UpcomingLectureNumber)
	if preserveOverrides {
		previous, err := s.repo.ListAssignments(ctx, groupID)
		if err != nil {
			return nil, s.serverError("list assignments", err)
		}
		generated = lectures.ReapplyOverrides(generated, previous, group.TeacherIDs)
	}
	if err := s.repo.ReplaceAssignments(ctx, groupID, generated); err != nil {
		return nil, s.serverError("replace assignments", err)
	}
	metrics.AssignmentRegenerations.WithLabelValues(strconv.FormatBool(preserveOverrides)).Inc()
	s.logger.Info("assignments regenerated",
		zap.String("group_id", groupID),
		zap.Int("lectures", len(generated)),
		zap.Int("teachers", len(group.TeacherIDs)),
		zap.Bool("preserve_overrides", preserveOverrides),
	)
	return generated, nil
}

// UpdateAssignment applies a manual edit to one lecture. The teacher, when
// set, must be on the group's roster.
func (s *Scheduler) UpdateAssignment(ctx context.Context, groupID string, lectureNumber int, patch lectures.Patch) (lectures.Assignment, error) {
	if err := checkUUID(groupID, ErrInvalidGroupID); err != nil {
		return lectures.Assignment{}, err
	}
	unlock, err := s.lock(ctx, groupID)
	if err != nil {
		return lectures.Assignment{}, err
	}
	defer unlock()

	group, err := s.group(ctx, groupID)
	if err != nil {
		return lectures.Assignment{}, err
	}
	if lectureNumber < 1 || lectureNumber > group.TotalLectures {
		return lectures.Assignment{}, &Error{Code: ErrInvalidLecture}
	}
	if patch.TeacherID != nil && *patch.TeacherID != "" && !contains(group.TeacherIDs, *patch.TeacherID) {
		return lectures.Assignment{}, &Error{Code: ErrInvalidTeacher}
	}

	current, err := s.repo.ListAssignments(ctx, groupID)
	if err != nil {
		return lectures.Assignment{}, s.serverError("list assignments", err)
	}
	updated, err := lectures.SetAssignment(current, lectureNumber, patch)
	switch {
	case errors.Is(err, lectures.ErrInvalidStatus):
		return lectures.Assignment{}, &Error{Code: ErrInvalidStatus}
	case errors.Is(err, lectures.ErrInvalidLecture):
		return lectures.Assignment{}, &Error{Code: ErrInvalidLecture}
	case err != nil:
		return lectures.Assignment{}, s.serverError("set assignment", err)
	}

	var entry lectures.Assignment
	for _, a := range updated {
		if a.LectureNumber == lectureNumber {
			entry = a
			break
		}
	}
	if err := s.repo.SaveAssignment(ctx, groupID, entry); err != nil {
		return lectures.Assignment{}, s.serverError("save assignment", err)
	}
	metrics.AssignmentOverrides.Inc()
	s.logger.Info("assignment updated",
		zap.String("group_id", groupID),
		zap.Int("lecture", lectureNumber),
		zap.String("teacher_id", entry.TeacherID),
		zap.String("status", string(entry.Status)),
	)
	return entry, nil
}

// Lectures returns the group's lecture board with teacher names resolved.
func (s *Scheduler) Lectures(ctx context.Context, groupID string) (LectureBoard, error) {
	if err := checkUUID(groupID, ErrInvalidGroupID); err != nil {
		return LectureBoard{}, err
	}
	group, err := s.group(ctx, groupID)
	if err != nil {
		return LectureBoard{}, err
	}
	assignments, err := s.repo.ListAssignments(ctx, groupID)
	if err != nil {
		return LectureBoard{}, s.serverError("list assignments", err)
	}

	distribution := lectures.Distribution(assignments)
	ids := make([]string, 0, len(distribution))
	for id := range distribution {
		ids = append(ids, id)
	}
	names, err := s.teachers.TeacherNames(ctx, ids)
	if err != nil {
		return LectureBoard{}, s.serverError("teacher names", err)
	}

	slots := lectures.Board(group.TotalLectures, assignments, group.Progress())
	board := LectureBoard{
		GroupID:       groupID,
		TotalLectures: group.TotalLectures,
		Progress:      group.Progress(),
		Slots:         make([]BoardSlot, 0, len(slots)),
		Distribution:  distribution,
	}
	for _, slot := range slots {
		board.Slots = append(board.Slots, BoardSlot{Slot: slot, TeacherName: names[slot.TeacherID]})
	}
	return board, nil
}

func (s *Scheduler) validate(draft sessions.SessionDraft, existing []sessions.Session, excludeID string) error {
	err := sessions.Validate(draft, existing, excludeID)
	var verr *sessions.ValidationError
	if errors.As(err, &verr) {
		for _, v := range verr.Violations {
			metrics.SessionRejections.WithLabelValues(v.Code).Inc()
		}
	}
	return err
}

func (s *Scheduler) lock(ctx context.Context, groupID string) (func(), error) {
	started := time.Now()
	unlock, err := s.locker.Lock(ctx, groupID)
	metrics.LockWait.Observe(time.Since(started).Seconds())
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			s.logger.Warn("group lock timeout", zap.String("group_id", groupID))
			return nil, &Error{Code: ErrGroupBusy}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, s.serverError("acquire group lock", err)
	}
	return unlock, nil
}

func (s *Scheduler) group(ctx context.Context, groupID string) (db.Group, error) {
	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return db.Group{}, &Error{Code: ErrGroupNotFound}
		}
		return db.Group{}, s.serverError("get group", err)
	}
	return group, nil
}

func (s *Scheduler) serverError(op string, err error) error {
	s.logger.Error(op, zap.Error(err))
	return &Error{Code: ErrServerError}
}

func checkUUID(value, code string) error {
	if _, err := uuid.Parse(value); err != nil {
		return &Error{Code: code}
	}
	return nil
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
