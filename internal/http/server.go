package http

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"schoolops/scheduling/internal/auth"
	"schoolops/scheduling/internal/config"
	"schoolops/scheduling/internal/lectures"
	"schoolops/scheduling/internal/service"
	"schoolops/scheduling/internal/sessions"
)

// Scheduler is the part of service.Scheduler the HTTP API drives.
type Scheduler interface {
	AddSession(ctx context.Context, groupID string, draft sessions.SessionDraft) (sessions.Session, error)
	EditSession(ctx context.Context, groupID, sessionID string, draft sessions.SessionDraft) (sessions.Session, error)
	RemoveSession(ctx context.Context, groupID, sessionID string) error
	Schedule(ctx context.Context, groupID string) (service.Schedule, error)
	RegenerateAssignments(ctx context.Context, groupID string, preserveOverrides bool) ([]lectures.Assignment, error)
	UpdateAssignment(ctx context.Context, groupID string, lectureNumber int, patch lectures.Patch) (lectures.Assignment, error)
	Lectures(ctx context.Context, groupID string) (service.LectureBoard, error)
}

type Server struct {
	cfg          config.Config
	scheduler    Scheduler
	jwtPublicKey *rsa.PublicKey
	logger       *zap.Logger
	validate     *validator.Validate
}

func NewServer(cfg config.Config, scheduler Scheduler, logger *zap.Logger) (*Server, error) {
	publicKey, err := auth.ParseRSAPublicKey(cfg.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:          cfg,
		scheduler:    scheduler,
		jwtPublicKey: publicKey,
		logger:       logger,
		validate:     newValidator(),
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.With(s.authMiddleware).Post("/sessions/validate", s.handleValidateSessions)

	r.With(s.authMiddleware).Get("/group/{groupId}/schedule", s.handleGetSchedule)
	r.With(s.authMiddleware, s.requireManager).Post("/group/{groupId}/session", s.handleCreateSession)
	r.With(s.authMiddleware, s.requireManager).Patch("/group/{groupId}/session/{sessionId}", s.handlePatchSession)
	r.With(s.authMiddleware, s.requireManager).Delete("/group/{groupId}/session/{sessionId}", s.handleDeleteSession)

	r.With(s.authMiddleware).Get("/group/{groupId}/lectures", s.handleGetLectures)
	r.With(s.authMiddleware, s.requireManager).Post("/group/{groupId}/assignments/generate", s.handleGenerateAssignments)
	r.With(s.authMiddleware, s.requireManager).Patch("/group/{groupId}/lecture/{lectureNumber}", s.handlePatchLecture)

	return r
}

// Middleware

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(started)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.jwtPublicKey, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func (s *Server) requireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !claimsFromContext(r.Context()).CanManageSchedules() {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Sessions

type sessionResponse struct {
	ID        string `json:"id"`
	Group     string `json:"group,omitempty"`
	Day       string `json:"day"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Label     string `json:"label"`
}

type scheduleResponse struct {
	Group    string            `json:"group"`
	Name     string            `json:"name"`
	Summary  string            `json:"summary"`
	Label    string            `json:"label"`
	Sessions []sessionResponse `json:"sessions"`
}

type validationResponse struct {
	Valid      bool                 `json:"valid"`
	Summary    string               `json:"summary"`
	Violations []sessions.Violation `json:"violations"`
}

func (s *Server) handleValidateSessions(w http.ResponseWriter, r *http.Request) {
	var req validateSessionsRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	existing := make([]sessions.Session, 0, len(req.Existing))
	for _, entry := range req.Existing {
		draft := entry.draft()
		existing = append(existing, sessions.Session{
			ID:        entry.ID,
			Day:       draft.Day,
			StartTime: draft.StartTime,
			EndTime:   draft.EndTime,
		})
	}

	resp := validationResponse{Valid: true, Violations: []sessions.Violation{}}
	err := sessions.Validate(req.Session.draft(), existing, req.ExcludeID)
	var verr *sessions.ValidationError
	if errors.As(err, &verr) {
		resp.Valid = false
		resp.Violations = verr.Violations
	}
	resp.Summary = sessions.Summarize(existing)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := s.scheduler.Schedule(r.Context(), chi.URLParam(r, "groupId"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := scheduleResponse{
		Group:    schedule.GroupID,
		Name:     schedule.GroupName,
		Summary:  schedule.Summary,
		Label:    schedule.Label,
		Sessions: make([]sessionResponse, 0, len(schedule.Sessions)),
	}
	for _, session := range schedule.Sessions {
		resp.Sessions = append(resp.Sessions, mapSession(session))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	session, err := s.scheduler.AddSession(r.Context(), chi.URLParam(r, "groupId"), req.draft())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapSession(session))
}

func (s *Server) handlePatchSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	session, err := s.scheduler.EditSession(r.Context(), chi.URLParam(r, "groupId"), chi.URLParam(r, "sessionId"), req.draft())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSession(session))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.RemoveSession(r.Context(), chi.URLParam(r, "groupId"), chi.URLParam(r, "sessionId")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Lectures

type teacherRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type lectureResponse struct {
	LectureNumber int         `json:"lectureNumber"`
	State         string      `json:"state"`
	Teacher       *teacherRef `json:"teacher"`
	Notes         string      `json:"notes,omitempty"`
	Assigned      bool        `json:"assigned"`
	Overridden    bool        `json:"overridden"`
}

type lectureBoardResponse struct {
	Group                 string            `json:"group"`
	TotalLectures         int               `json:"totalLectures"`
	CurrentLectureNumber  int               `json:"currentLectureNumber"`
	UpcomingLectureNumber int               `json:"upcomingLectureNumber"`
	Lectures              []lectureResponse `json:"lectures"`
	Distribution          map[string]int    `json:"distribution"`
}

type assignmentResponse struct {
	LectureNumber int    `json:"lectureNumber"`
	Teacher       string `json:"teacher"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	Overridden    bool   `json:"overridden"`
}

func (s *Server) handleGetLectures(w http.ResponseWriter, r *http.Request) {
	board, err := s.scheduler.Lectures(r.Context(), chi.URLParam(r, "groupId"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := lectureBoardResponse{
		Group:                 board.GroupID,
		TotalLectures:         board.TotalLectures,
		CurrentLectureNumber:  board.Progress.CurrentLectureNumber,
		UpcomingLectureNumber: board.Progress.UpcomingLectureNumber,
		Lectures:              make([]lectureResponse, 0, len(board.Slots)),
		Distribution:          board.Distribution,
	}
	for _, slot := range board.Slots {
		entry := lectureResponse{
			LectureNumber: slot.LectureNumber,
			State:         string(slot.State),
			Notes:         slot.Notes,
			Assigned:      slot.Assigned,
			Overridden:    slot.Overridden,
		}
		if slot.TeacherID != "" {
			entry.Teacher = &teacherRef{ID: slot.TeacherID, Name: slot.TeacherName}
		}
		resp.Lectures = append(resp.Lectures, entry)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerateAssignments(w http.ResponseWriter, r *http.Request) {
	var req generateAssignmentsRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	assignments, err := s.scheduler.RegenerateAssignments(r.Context(), chi.URLParam(r, "groupId"), req.PreserveOverrides)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := make([]assignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		resp = append(resp, mapAssignment(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePatchLecture(w http.ResponseWriter, r *http.Request) {
	lectureNumber, err := strconv.Atoi(chi.URLParam(r, "lectureNumber"))
	if err != nil {
		writeError(w, http.StatusBadRequest, service.ErrInvalidLecture)
		return
	}
	var req patchLectureRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	patch := lectures.Patch{Notes: req.Notes}
	if req.Teacher != nil {
		// an empty teacher clears the slot
		teacher := strings.TrimSpace(*req.Teacher)
		if teacher != "" {
			if _, err := uuid.Parse(teacher); err != nil {
				writeError(w, http.StatusBadRequest, service.ErrInvalidTeacher)
				return
			}
		}
		patch.TeacherID = &teacher
	}
	if req.Status != nil {
		status, err := lectures.ParseStatus(*req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, service.ErrInvalidStatus)
			return
		}
		patch.Status = &status
	}
	assignment, err := s.scheduler.UpdateAssignment(r.Context(), chi.URLParam(r, "groupId"), lectureNumber, patch)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapAssignment(assignment))
}

// Helpers

func mapSession(session sessions.Session) sessionResponse {
	return sessionResponse{
		ID:        session.ID,
		Group:     session.GroupID,
		Day:       string(session.Day),
		StartTime: session.StartTime.String(),
		EndTime:   session.EndTime.String(),
		Label:     sessions.Label(session),
	}
}

func mapAssignment(a lectures.Assignment) assignmentResponse {
	return assignmentResponse{
		LectureNumber: a.LectureNumber,
		Teacher:       a.TeacherID,
		Status:        string(a.Status),
		Notes:         a.Notes,
		Overridden:    a.Overridden,
	}
}

func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := decodeJSON(r, out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return false
	}
	if err := s.validate.Struct(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "invalid_request",
			"fields": fieldErrors(err),
		})
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var verr *sessions.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":      "validation_failed",
			"violations": verr.Violations,
		})
		return
	}
	var serr *service.Error
	if !errors.As(err, &serr) {
		s.logger.Error("unexpected scheduler error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, service.ErrServerError)
		return
	}
	switch serr.Code {
	case service.ErrGroupNotFound, service.ErrSessionNotFound:
		writeError(w, http.StatusNotFound, serr.Code)
	case service.ErrGroupBusy:
		writeError(w, http.StatusConflict, serr.Code)
	case service.ErrServerError:
		writeError(w, http.StatusInternalServerError, serr.Code)
	default:
		writeError(w, http.StatusBadRequest, serr.Code)
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
