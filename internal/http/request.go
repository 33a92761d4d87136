package http

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"schoolops/scheduling/internal/sessions"
)

const clockTag = "clock"

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation(clockTag, func(fl validator.FieldLevel) bool {
		_, err := sessions.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	return v
}

// fieldErrors maps each rejected JSON field to the rule it failed.
func fieldErrors(err error) map[string]string {
	fields := make(map[string]string)
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			fields[fe.Namespace()[strings.Index(fe.Namespace(), ".")+1:]] = fe.Tag()
		}
	}
	return fields
}

type sessionRequest struct {
	Day       string `json:"day" validate:"required"`
	StartTime string `json:"startTime" validate:"required,clock"`
	EndTime   string `json:"endTime" validate:"required,clock"`
}

// draft converts a checked request. An unrecognized day is passed through
// verbatim so session validation reports it as invalid_day.
func (r sessionRequest) draft() sessions.SessionDraft {
	day, err := sessions.ParseDay(r.Day)
	if err != nil {
		day = sessions.Day(strings.TrimSpace(r.Day))
	}
	start, _ := sessions.ParseTimeOfDay(r.StartTime)
	end, _ := sessions.ParseTimeOfDay(r.EndTime)
	return sessions.SessionDraft{Day: day, StartTime: start, EndTime: end}
}

type existingSessionRequest struct {
	ID string `json:"id" validate:"required"`
	sessionRequest
}

type validateSessionsRequest struct {
	Session   sessionRequest           `json:"session"`
	Existing  []existingSessionRequest `json:"existing" validate:"dive"`
	ExcludeID string                   `json:"excludeId"`
}

type generateAssignmentsRequest struct {
	PreserveOverrides bool `json:"preserveOverrides"`
}

type patchLectureRequest struct {
	Teacher *string `json:"teacher"`
	Status  *string `json:"status"`
	Notes   *string `json:"notes" validate:"omitempty,max=2000"`
}
