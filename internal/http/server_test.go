package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"schoolops/scheduling/internal/auth"
	"schoolops/scheduling/internal/config"
	"schoolops/scheduling/internal/lectures"
	"schoolops/scheduling/internal/service"
	"schoolops/scheduling/internal/sessions"
)

const (
	groupID   = "33333333-3333-3333-3333-333333333331"
	sessionID = "33333333-3333-3333-3333-333333333332"
	teacherA  = "22222222-2222-2222-2222-222222222221"
	issuer    = "test-issuer"
)

type stubScheduler struct {
	addErr      error
	addDraft    sessions.SessionDraft
	patch       lectures.Patch
	preserve    bool
	lectureSeen int
}

func (s *stubScheduler) AddSession(_ context.Context, group string, draft sessions.SessionDraft) (sessions.Session, error) {
	s.addDraft = draft
	if s.addErr != nil {
		return sessions.Session{}, s.addErr
	}
	return sessions.Session{ID: sessionID, GroupID: group, Day: draft.Day, StartTime: draft.StartTime, EndTime: draft.EndTime}, nil
}

func (s *stubScheduler) EditSession(_ context.Context, group, id string, draft sessions.SessionDraft) (sessions.Session, error) {
	if id != sessionID {
		return sessions.Session{}, &service.Error{Code: service.ErrSessionNotFound}
	}
	return sessions.Session{ID: id, GroupID: group, Day: draft.Day, StartTime: draft.StartTime, EndTime: draft.EndTime}, nil
}

func (s *stubScheduler) RemoveSession(_ context.Context, _, id string) error {
	if id != sessionID {
		return &service.Error{Code: service.ErrSessionNotFound}
	}
	return nil
}

func (s *stubScheduler) Schedule(_ context.Context, group string) (service.Schedule, error) {
	if group != groupID {
		return service.Schedule{}, &service.Error{Code: service.ErrGroupNotFound}
	}
	list := []sessions.Session{{ID: sessionID, GroupID: group, Day: sessions.Sunday, StartTime: 9 * 60, EndTime: 10 * 60}}
	return service.Schedule{
		GroupID:   group,
		GroupName: "Algebra A",
		Sessions:  list,
		Summary:   sessions.Summarize(list),
		Label:     sessions.DisplayLabel("Algebra A", list),
	}, nil
}

func (s *stubScheduler) RegenerateAssignments(_ context.Context, _ string, preserve bool) ([]lectures.Assignment, error) {
	s.preserve = preserve
	return lectures.Generate([]string{teacherA}, 2, 1, 2), nil
}

func (s *stubScheduler) UpdateAssignment(_ context.Context, _ string, lectureNumber int, patch lectures.Patch) (lectures.Assignment, error) {
	s.lectureSeen = lectureNumber
	s.patch = patch
	if patch.Status != nil && !patch.Status.Valid() {
		return lectures.Assignment{}, &service.Error{Code: service.ErrInvalidStatus}
	}
	a := lectures.Assignment{LectureNumber: lectureNumber, Overridden: true}
	if patch.Status != nil {
		a.Status = *patch.Status
	}
	return a, nil
}

func (s *stubScheduler) Lectures(_ context.Context, group string) (service.LectureBoard, error) {
	assignments := lectures.Generate([]string{teacherA}, 3, 2, 3)
	board := service.LectureBoard{
		GroupID:       group,
		TotalLectures: 3,
		Progress:      lectures.Progress{CurrentLectureNumber: 2, UpcomingLectureNumber: 3},
		Distribution:  lectures.Distribution(assignments),
	}
	for _, slot := range lectures.Board(3, assignments, board.Progress) {
		board.Slots = append(board.Slots, service.BoardSlot{Slot: slot, TeacherName: "Ada"})
	}
	return board, nil
}

type testEnv struct {
	app       *httptest.Server
	scheduler *stubScheduler
	admin     string
	teacher   string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("keygen error: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	cfg := config.Config{
		HTTPAddr:     ":0",
		JWTPublicKey: string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})),
		JWTIssuer:    issuer,
	}
	scheduler := &stubScheduler{}
	server, err := NewServer(cfg, scheduler, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	app := httptest.NewServer(server.Router())
	t.Cleanup(app.Close)
	return testEnv{
		app:       app,
		scheduler: scheduler,
		admin:     mustToken(t, key, "admin"),
		teacher:   mustToken(t, key, "teacher"),
	}
}

func mustToken(t *testing.T, key *rsa.PrivateKey, userType string) string {
	t.Helper()
	claims := auth.Claims{
		UserID:   "11111111-1111-1111-1111-111111111111",
		UserType: userType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	return token
}

func doReq(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestAuthAndRoles(t *testing.T) {
	env := newTestEnv(t)

	resp := doReq(t, http.MethodGet, env.app.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodGet, env.app.URL+"/group/"+groupID+"/schedule", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodGet, env.app.URL+"/group/"+groupID+"/schedule", "garbage", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", resp.StatusCode)
	}

	// Teachers can read schedules but not edit them.
	resp = doReq(t, http.MethodGet, env.app.URL+"/group/"+groupID+"/schedule", env.teacher, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := map[string]string{"day": "Monday", "startTime": "09:00", "endTime": "10:00"}
	resp = doReq(t, http.MethodPost, env.app.URL+"/group/"+groupID+"/session", env.teacher, body)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestGetSchedule(t *testing.T) {
	env := newTestEnv(t)

	resp := doReq(t, http.MethodGet, env.app.URL+"/group/"+groupID+"/schedule", env.admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var schedule scheduleResponse
	decodeBody(t, resp, &schedule)
	if schedule.Summary != "Sun [ 9:00 AM - 10:00 AM ]" {
		t.Fatalf("unexpected summary %q", schedule.Summary)
	}
	if schedule.Label != "Algebra A - Sun [ 9:00 AM - 10:00 AM ]" {
		t.Fatalf("unexpected label %q", schedule.Label)
	}
	if len(schedule.Sessions) != 1 || schedule.Sessions[0].StartTime != "09:00" {
		t.Fatalf("unexpected sessions %+v", schedule.Sessions)
	}

	resp = doReq(t, http.MethodGet, env.app.URL+"/group/33333333-3333-3333-3333-999999999999/schedule", env.admin, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)
	url := env.app.URL + "/group/" + groupID + "/session"

	resp := doReq(t, http.MethodPost, url, env.admin, map[string]string{"day": "thu", "startTime": "17:40", "endTime": "18:40"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created sessionResponse
	decodeBody(t, resp, &created)
	if created.Day != "Thursday" || created.Label != "Thu [ 5:40 PM - 6:40 PM ]" {
		t.Fatalf("unexpected session %+v", created)
	}

	// Malformed time never reaches the scheduler.
	resp = doReq(t, http.MethodPost, url, env.admin, map[string]string{"day": "Monday", "startTime": "9am", "endTime": "10:00"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var invalid struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	decodeBody(t, resp, &invalid)
	if invalid.Fields["startTime"] != clockTag {
		t.Fatalf("expected startTime clock error, got %+v", invalid.Fields)
	}

	// Unknown days reach session validation as-is.
	env.scheduler.addErr = &sessions.ValidationError{Violations: []sessions.Violation{{Code: sessions.ErrInvalidDay, Message: "bad day"}}}
	resp = doReq(t, http.MethodPost, url, env.admin, map[string]string{"day": "Friyay", "startTime": "09:00", "endTime": "10:00"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if env.scheduler.addDraft.Day != sessions.Day("Friyay") {
		t.Fatalf("expected raw day to be forwarded, got %q", env.scheduler.addDraft.Day)
	}
	var failed struct {
		Error      string               `json:"error"`
		Violations []sessions.Violation `json:"violations"`
	}
	decodeBody(t, resp, &failed)
	if failed.Error != "validation_failed" || len(failed.Violations) != 1 || failed.Violations[0].Code != sessions.ErrInvalidDay {
		t.Fatalf("unexpected body %+v", failed)
	}

	env.scheduler.addErr = &service.Error{Code: service.ErrGroupBusy}
	resp = doReq(t, http.MethodPost, url, env.admin, map[string]string{"day": "Monday", "startTime": "09:00", "endTime": "10:00"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestPatchAndDeleteSession(t *testing.T) {
	env := newTestEnv(t)
	base := env.app.URL + "/group/" + groupID + "/session/"
	body := map[string]string{"day": "Tuesday", "startTime": "08:00", "endTime": "09:15"}

	resp := doReq(t, http.MethodPatch, base+sessionID, env.admin, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodPatch, base+"33333333-3333-3333-3333-000000000000", env.admin, body)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodDelete, base+sessionID, env.admin, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestValidateSessionsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]interface{}{
		"session": map[string]string{"day": "Sunday", "startTime": "09:30", "endTime": "10:30"},
		"existing": []map[string]string{
			{"id": "a", "day": "Sunday", "startTime": "09:00", "endTime": "10:00"},
			{"id": "b", "day": "Monday", "startTime": "09:00", "endTime": "10:00"},
		},
	}
	resp := doReq(t, http.MethodPost, env.app.URL+"/sessions/validate", env.teacher, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result validationResponse
	decodeBody(t, resp, &result)
	if result.Valid || len(result.Violations) != 1 || result.Violations[0].SessionID != "a" {
		t.Fatalf("unexpected result %+v", result)
	}

	body["excludeId"] = "a"
	resp = doReq(t, http.MethodPost, env.app.URL+"/sessions/validate", env.teacher, body)
	decodeBody(t, resp, &result)
	if !result.Valid || len(result.Violations) != 0 {
		t.Fatalf("expected valid result, got %+v", result)
	}
}

func TestLectureEndpoints(t *testing.T) {
	env := newTestEnv(t)
	base := env.app.URL + "/group/" + groupID

	resp := doReq(t, http.MethodGet, base+"/lectures", env.teacher, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var board lectureBoardResponse
	decodeBody(t, resp, &board)
	if len(board.Lectures) != 3 || board.Lectures[1].State != "current" || board.Lectures[0].Teacher.Name != "Ada" {
		t.Fatalf("unexpected board %+v", board)
	}
	if board.Distribution[teacherA] != 3 {
		t.Fatalf("unexpected distribution %+v", board.Distribution)
	}

	resp = doReq(t, http.MethodPost, base+"/assignments/generate", env.admin, map[string]bool{"preserveOverrides": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !env.scheduler.preserve {
		t.Fatalf("expected preserveOverrides to be forwarded")
	}
	resp = doReq(t, http.MethodPost, base+"/assignments/generate", env.admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for empty body, got %d", resp.StatusCode)
	}
	if env.scheduler.preserve {
		t.Fatalf("expected default regeneration to replace overrides")
	}

	resp = doReq(t, http.MethodPatch, base+"/lecture/2", env.admin, map[string]string{"status": "Dismissed", "notes": "holiday"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var updated assignmentResponse
	decodeBody(t, resp, &updated)
	if updated.Status != "dismissed" || !updated.Overridden || env.scheduler.lectureSeen != 2 {
		t.Fatalf("unexpected assignment %+v", updated)
	}
	if env.scheduler.patch.TeacherID != nil {
		t.Fatalf("expected teacher to stay untouched")
	}

	resp = doReq(t, http.MethodPatch, base+"/lecture/3", env.admin, map[string]string{"teacher": "", "notes": "unstaffed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for cleared teacher, got %d", resp.StatusCode)
	}
	if env.scheduler.lectureSeen != 3 || env.scheduler.patch.TeacherID == nil || *env.scheduler.patch.TeacherID != "" {
		t.Fatalf("expected empty teacher to be forwarded, got %+v", env.scheduler.patch)
	}

	env.scheduler.lectureSeen = 0
	resp = doReq(t, http.MethodPatch, base+"/lecture/2", env.admin, map[string]string{"status": "archived"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var failure map[string]interface{}
	decodeBody(t, resp, &failure)
	if failure["error"] != service.ErrInvalidStatus {
		t.Fatalf("expected invalid_status, got %v", failure)
	}
	resp = doReq(t, http.MethodPatch, base+"/lecture/2", env.admin, map[string]string{"teacher": "nope"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed teacher, got %d", resp.StatusCode)
	}
	failure = nil
	decodeBody(t, resp, &failure)
	if failure["error"] != service.ErrInvalidTeacher {
		t.Fatalf("expected invalid_teacher, got %v", failure)
	}
	if env.scheduler.lectureSeen != 0 {
		t.Fatalf("rejected patches must not reach the scheduler")
	}
	resp = doReq(t, http.MethodPatch, base+"/lecture/two", env.admin, map[string]string{"notes": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad lecture number, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodPatch, base+"/lecture/2", env.teacher, map[string]string{"notes": "x"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}
