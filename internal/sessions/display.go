package sessions

import (
	"fmt"
	"sort"
	"strings"
)

// EmptySummary is shown for a group with no sessions yet.
const EmptySummary = "New Group"

var abbrevOverrides = map[Day]string{
	Tuesday:  "Tue",
	Thursday: "Thu",
}

func DayAbbrev(d Day) string {
	if abbrev, ok := abbrevOverrides[d]; ok {
		return abbrev
	}
	runes := []rune(string(d))
	if len(runes) <= 3 {
		return string(runes)
	}
	return string(runes[:3])
}

// Format12h renders t as "h:MM AM" / "h:MM PM"; midnight and noon show as 12.
func Format12h(t TimeOfDay) string {
	hour := t.Hour()
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d:%02d %s", hour, t.Minute(), suffix)
}

// SortSessions returns a copy ordered by academic day, then start, end and id.
func SortSessions(list []Session) []Session {
	sorted := make([]Session, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Day.Rank() != b.Day.Rank() {
			return a.Day.Rank() < b.Day.Rank()
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		if a.EndTime != b.EndTime {
			return a.EndTime < b.EndTime
		}
		return a.ID < b.ID
	})
	return sorted
}

// Label formats one session, e.g. "Sun [ 9:00 AM - 10:00 AM ]".
func Label(s Session) string {
	return fmt.Sprintf("%s [ %s - %s ]", DayAbbrev(s.Day), Format12h(s.StartTime), Format12h(s.EndTime))
}

func Summarize(list []Session) string {
	sorted := SortSessions(list)
	switch len(sorted) {
	case 0:
		return EmptySummary
	case 1:
		return Label(sorted[0])
	case 2:
		return Label(sorted[0]) + " ~ " + Label(sorted[1])
	default:
		return fmt.Sprintf("Multiple (%d Sessions)", len(sorted))
	}
}

// DisplayLabel prefixes the summary with the group name when there is one.
func DisplayLabel(groupName string, list []Session) string {
	summary := Summarize(list)
	name := strings.TrimSpace(groupName)
	if name == "" {
		return summary
	}
	return name + " - " + summary
}
