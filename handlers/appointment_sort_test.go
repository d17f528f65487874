package handlers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOrderingsAreTotalOrders(t *testing.T) {
	all := map[string]bool{
		"upcoming": true, "rescheduled": true, "missed": true,
		"completed": true, "cancelled": true,
	}

	for i, ordering := range statusOrderings {
		seen := map[string]bool{}
		for _, status := range ordering {
			require.True(t, all[status], "option %d contains unknown status %q", i+1, status)
			require.False(t, seen[status], "option %d repeats status %q", i+1, status)
			seen[status] = true
		}
		assert.Len(t, seen, len(all), "option %d must rank every status", i+1)
	}
}

func TestEachOptionPromotesADifferentStatus(t *testing.T) {
	firsts := map[string]bool{}
	for _, ordering := range statusOrderings {
		firsts[ordering[0]] = true
	}
	assert.Len(t, firsts, len(statusOrderings))
}

func TestStatusOrderSQLRendersCaseExpression(t *testing.T) {
	sql := statusOrderSQL(1)

	assert.Equal(t,
		"CASE a.status WHEN 'upcoming' THEN 1 WHEN 'rescheduled' THEN 2"+
			" WHEN 'missed' THEN 3 WHEN 'completed' THEN 4 WHEN 'cancelled' THEN 5 ELSE 5 END",
		sql)
}

func TestStatusOrderSQLRanksSelectedStatusFirst(t *testing.T) {
	for option, ordering := range statusOrderings {
		sql := statusOrderSQL(option + 1)
		assert.Contains(t, sql, fmt.Sprintf("WHEN '%s' THEN 1", ordering[0]),
			"option %d", option+1)
	}
}

func TestStatusOrderSQLFallsBackToDefault(t *testing.T) {
	expected := statusOrderSQL(1)

	assert.Equal(t, expected, statusOrderSQL(0))
	assert.Equal(t, expected, statusOrderSQL(-3))
	assert.Equal(t, expected, statusOrderSQL(6))
}
