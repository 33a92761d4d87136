package sessions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	sunday := session(t, "s1", Sunday, "09:00", "10:00")
	thursday := session(t, "s2", Thursday, "17:40", "18:40")
	tuesday := session(t, "s3", Tuesday, "12:00", "13:30")

	tests := []struct {
		name     string
		sessions []Session
		want     string
	}{
		{name: "empty", sessions: nil, want: "New Group"},
		{name: "single", sessions: []Session{sunday}, want: "Sun [ 9:00 AM - 10:00 AM ]"},
		{
			name:     "double",
			sessions: []Session{sunday, thursday},
			want:     "Sun [ 9:00 AM - 10:00 AM ] ~ Thu [ 5:40 PM - 6:40 PM ]",
		},
		{
			name:     "double sorted by day",
			sessions: []Session{thursday, sunday},
			want:     "Sun [ 9:00 AM - 10:00 AM ] ~ Thu [ 5:40 PM - 6:40 PM ]",
		},
		{name: "multiple", sessions: []Session{sunday, thursday, tuesday}, want: "Multiple (3 Sessions)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.sessions))
		})
	}
}

func TestFormat12h(t *testing.T) {
	cases := map[string]string{
		"00:00": "12:00 AM",
		"00:05": "12:05 AM",
		"09:00": "9:00 AM",
		"11:59": "11:59 AM",
		"12:00": "12:00 PM",
		"13:07": "1:07 PM",
		"23:30": "11:30 PM",
	}
	for input, want := range cases {
		assert.Equal(t, want, Format12h(mustTime(t, input)), input)
	}
}

func TestDayAbbrev(t *testing.T) {
	cases := map[Day]string{
		Sunday:    "Sun",
		Monday:    "Mon",
		Tuesday:   "Tue",
		Wednesday: "Wed",
		Thursday:  "Thu",
		Friday:    "Fri",
		"":        "",
	}
	for day, want := range cases {
		assert.Equal(t, want, DayAbbrev(day))
	}
}

func TestSortSessionsCanonicalOrder(t *testing.T) {
	input := []Session{
		session(t, "fri", Friday, "08:00", "09:00"),
		session(t, "thu", Thursday, "08:00", "09:00"),
		session(t, "sun-late", Sunday, "14:00", "15:00"),
		session(t, "mon", Monday, "08:00", "09:00"),
		session(t, "sun-early", Sunday, "08:00", "09:00"),
	}
	sorted := SortSessions(input)

	ids := make([]string, 0, len(sorted))
	for _, s := range sorted {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"sun-early", "sun-late", "mon", "thu", "fri"}, ids)
	assert.Equal(t, "fri", input[0].ID, "input must not be reordered")

	again := SortSessions(input)
	assert.Equal(t, sorted, again)
}

func TestDisplayLabel(t *testing.T) {
	sunday := session(t, "s1", Sunday, "09:00", "10:00")
	assert.Equal(t, "Level 3 - Sun [ 9:00 AM - 10:00 AM ]", DisplayLabel("Level 3", []Session{sunday}))
	assert.Equal(t, "New Group", DisplayLabel("  ", nil))
}
