package handlers

import (
	"fmt"
	"strings"
)

// statusOrderings holds the five selectable status-priority orderings for
// appointment listings. Each row is a total order over the five appointment
// statuses; the sort option (1-5) picks the row. Option 1 is the default
// "active first" view used on the patient side.
var statusOrderings = [5][5]string{
	{"upcoming", "rescheduled", "missed", "completed", "cancelled"},
	{"rescheduled", "upcoming", "missed", "completed", "cancelled"},
	{"missed", "upcoming", "rescheduled", "completed", "cancelled"},
	{"completed", "upcoming", "rescheduled", "missed", "cancelled"},
	{"cancelled", "upcoming", "rescheduled", "missed", "completed"},
}

// statusOrderSQL renders the CASE expression ranking appointment statuses for
// the chosen sort option. Out-of-range options fall back to option 1.
func statusOrderSQL(option int) string {
	if option < 1 || option > len(statusOrderings) {
		option = 1
	}
	ordering := statusOrderings[option-1]

	var b strings.Builder
	b.WriteString("CASE a.status")
	for i, status := range ordering {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", status, i+1)
	}
	b.WriteString(" ELSE 5 END")
	return b.String()
}
