package grpc

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"schoolops/scheduling/internal/lectures"
	"schoolops/scheduling/internal/service"
	"schoolops/scheduling/internal/sessions"
)

// GroupScheduler is the part of service.Scheduler exposed to other services.
type GroupScheduler interface {
	Schedule(ctx context.Context, groupID string) (service.Schedule, error)
	RegenerateAssignments(ctx context.Context, groupID string, preserveOverrides bool) ([]lectures.Assignment, error)
}

type SchedulingQueryServer struct {
	scheduler GroupScheduler
	logger    *zap.Logger
}

func NewSchedulingQueryServer(scheduler GroupScheduler, logger *zap.Logger) *SchedulingQueryServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulingQueryServer{scheduler: scheduler, logger: logger}
}

// ValidateSession checks {session, existing, excludeId} without touching storage.
func (s *SchedulingQueryServer) ValidateSession(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	candidate, err := sessionFromValue(req.GetFields()["session"].GetStructValue(), false)
	if err != nil {
		return nil, err
	}
	existing, err := sessionsFromList(req.GetFields()["existing"])
	if err != nil {
		return nil, err
	}
	excludeID := req.GetFields()["excludeId"].GetStringValue()

	violations := []interface{}{}
	valid := true
	var verr *sessions.ValidationError
	if errors.As(sessions.Validate(candidate.Draft(), existing, excludeID), &verr) {
		valid = false
		for _, v := range verr.Violations {
			violations = append(violations, map[string]interface{}{
				"code":    v.Code,
				"session": v.SessionID,
				"message": v.Message,
			})
		}
	}
	return newStruct(map[string]interface{}{
		"valid":      valid,
		"violations": violations,
	})
}

// SummarizeSessions renders {sessions, groupName} into summary and label texts.
func (s *SchedulingQueryServer) SummarizeSessions(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	list, err := sessionsFromList(req.GetFields()["sessions"])
	if err != nil {
		return nil, err
	}
	groupName := req.GetFields()["groupName"].GetStringValue()
	return newStruct(map[string]interface{}{
		"summary": sessions.Summarize(list),
		"label":   sessions.DisplayLabel(groupName, list),
	})
}

func (s *SchedulingQueryServer) GetGroupSchedule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	groupID := req.GetFields()["groupId"].GetStringValue()
	if groupID == "" {
		return nil, status.Error(codes.InvalidArgument, "group_id required")
	}
	schedule, err := s.scheduler.Schedule(ctx, groupID)
	if err != nil {
		return nil, s.statusError(err)
	}
	list := make([]interface{}, 0, len(schedule.Sessions))
	for _, session := range schedule.Sessions {
		list = append(list, map[string]interface{}{
			"id":        session.ID,
			"day":       string(session.Day),
			"startTime": session.StartTime.String(),
			"endTime":   session.EndTime.String(),
			"label":     sessions.Label(session),
		})
	}
	return newStruct(map[string]interface{}{
		"group":    schedule.GroupID,
		"name":     schedule.GroupName,
		"summary":  schedule.Summary,
		"label":    schedule.Label,
		"sessions": list,
	})
}

func (s *SchedulingQueryServer) GenerateAssignments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	groupID := req.GetFields()["groupId"].GetStringValue()
	if groupID == "" {
		return nil, status.Error(codes.InvalidArgument, "group_id required")
	}
	preserve := req.GetFields()["preserveOverrides"].GetBoolValue()
	assignments, err := s.scheduler.RegenerateAssignments(ctx, groupID, preserve)
	if err != nil {
		return nil, s.statusError(err)
	}
	list := make([]interface{}, 0, len(assignments))
	for _, a := range assignments {
		list = append(list, map[string]interface{}{
			"lectureNumber": a.LectureNumber,
			"teacher":       a.TeacherID,
			"status":        string(a.Status),
			"notes":         a.Notes,
			"overridden":    a.Overridden,
		})
	}
	return newStruct(map[string]interface{}{
		"group":       groupID,
		"assignments": list,
	})
}

func (s *SchedulingQueryServer) statusError(err error) error {
	var serr *service.Error
	if !errors.As(err, &serr) {
		s.logger.Error("scheduler call failed", zap.Error(err))
		return status.Error(codes.Internal, service.ErrServerError)
	}
	switch serr.Code {
	case service.ErrGroupNotFound, service.ErrSessionNotFound:
		return status.Error(codes.NotFound, serr.Code)
	case service.ErrGroupBusy:
		return status.Error(codes.Aborted, serr.Code)
	case service.ErrServerError:
		return status.Error(codes.Internal, serr.Code)
	default:
		return status.Error(codes.InvalidArgument, serr.Code)
	}
}

func sessionsFromList(value *structpb.Value) ([]sessions.Session, error) {
	values := value.GetListValue().GetValues()
	list := make([]sessions.Session, 0, len(values))
	for _, item := range values {
		session, err := sessionFromValue(item.GetStructValue(), true)
		if err != nil {
			return nil, err
		}
		list = append(list, session)
	}
	return list, nil
}

// sessionFromValue reads {id, day, startTime, endTime}. Unknown day names are
// kept verbatim so validation can report them.
func sessionFromValue(st *structpb.Struct, needID bool) (sessions.Session, error) {
	if st == nil {
		return sessions.Session{}, status.Error(codes.InvalidArgument, "session required")
	}
	fields := st.GetFields()
	session := sessions.Session{ID: fields["id"].GetStringValue()}
	if needID && session.ID == "" {
		return sessions.Session{}, status.Error(codes.InvalidArgument, "session id required")
	}
	rawDay := fields["day"].GetStringValue()
	day, err := sessions.ParseDay(rawDay)
	if err != nil {
		day = sessions.Day(rawDay)
	}
	session.Day = day
	if session.StartTime, err = sessions.ParseTimeOfDay(fields["startTime"].GetStringValue()); err != nil {
		return sessions.Session{}, status.Error(codes.InvalidArgument, "invalid startTime")
	}
	if session.EndTime, err = sessions.ParseTimeOfDay(fields["endTime"].GetStringValue()); err != nil {
		return sessions.Session{}, status.Error(codes.InvalidArgument, "invalid endTime")
	}
	return session, nil
}

func newStruct(fields map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}
