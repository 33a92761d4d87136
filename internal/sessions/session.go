package sessions

import (
	"fmt"
	"strconv"
	"strings"
)

type Day string

const (
	Sunday    Day = "Sunday"
	Monday    Day = "Monday"
	Tuesday   Day = "Tuesday"
	Wednesday Day = "Wednesday"
	Thursday  Day = "Thursday"
	Friday    Day = "Friday"
	Saturday  Day = "Saturday"
)

// AllowedDays is the academic week. Friday and Saturday are never scheduled.
var AllowedDays = []Day{Sunday, Monday, Tuesday, Wednesday, Thursday}

var dayRank = func() map[Day]int {
	ranks := make(map[Day]int, len(AllowedDays))
	for i, day := range AllowedDays {
		ranks[day] = i
	}
	return ranks
}()

var knownDays = map[string]Day{
	"sunday":    Sunday,
	"sun":       Sunday,
	"monday":    Monday,
	"mon":       Monday,
	"tuesday":   Tuesday,
	"tue":       Tuesday,
	"tues":      Tuesday,
	"wednesday": Wednesday,
	"wed":       Wednesday,
	"thursday":  Thursday,
	"thu":       Thursday,
	"thurs":     Thursday,
	"friday":    Friday,
	"fri":       Friday,
	"saturday":  Saturday,
	"sat":       Saturday,
}

// ParseDay accepts full names and common abbreviations in any case.
func ParseDay(value string) (Day, error) {
	day, ok := knownDays[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return "", fmt.Errorf("unknown day %q", value)
	}
	return day, nil
}

func (d Day) Allowed() bool {
	_, ok := dayRank[d]
	return ok
}

// Rank orders the academic week; days outside it sort after Thursday.
func (d Day) Rank() int {
	if rank, ok := dayRank[d]; ok {
		return rank
	}
	return len(dayRank)
}

// TimeOfDay is a wall-clock time as minutes since midnight.
type TimeOfDay int

const minutesPerDay = 24 * 60

func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time %02d:%02d", hour, minute)
	}
	return TimeOfDay(hour*60 + minute), nil
}

// ParseTimeOfDay reads "HH:MM" or "HH:MM:SS" in 24h notation. Seconds are dropped.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	if len(parts) == 3 {
		second, err := strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return 0, fmt.Errorf("invalid time %q", value)
		}
	}
	return NewTimeOfDay(hour, minute)
}

func (t TimeOfDay) Hour() int {
	return int(t) / 60
}

func (t TimeOfDay) Minute() int {
	return int(t) % 60
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

// String renders 24h "HH:MM", the wire format.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

type Session struct {
	ID        string
	GroupID   string
	Day       Day
	StartTime TimeOfDay
	EndTime   TimeOfDay
}

// SessionDraft is a session that has not been persisted yet, or the edited fields of one.
type SessionDraft struct {
	Day       Day
	StartTime TimeOfDay
	EndTime   TimeOfDay
}

func (s Session) Draft() SessionDraft {
	return SessionDraft{Day: s.Day, StartTime: s.StartTime, EndTime: s.EndTime}
}

// Overlaps reports whether two slots on the same day intersect as half-open
// intervals. A slot ending exactly when the other starts does not overlap.
func Overlaps(a, b SessionDraft) bool {
	if a.Day != b.Day {
		return false
	}
	return a.StartTime < b.EndTime && b.StartTime < a.EndTime
}
