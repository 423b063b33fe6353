package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureUniqueIDs(t *testing.T) {
	events := []Event{
		{ID: "a", Title: "first"},
		{ID: "", Title: "no id"},
		{ID: "a", Title: "duplicate"},
		{ID: "b", Title: "other"},
	}

	EnsureUniqueIDs(events)

	require.Equal(t, "a", events[0].ID)
	require.NotEmpty(t, events[1].ID)
	require.NotEqual(t, "a", events[2].ID)
	require.Equal(t, "b", events[3].ID)

	seen := map[string]bool{}
	for _, e := range events {
		require.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
	}
}

func TestAccepted(t *testing.T) {
	events := []Event{
		{ID: "1", Status: StatusAccepted},
		{ID: "2", Status: StatusDeclined},
		{ID: "3", Status: StatusPending},
		{ID: "4", Status: StatusAccepted},
	}

	accepted := Accepted(events)
	require.Len(t, accepted, 2)
	require.Equal(t, "1", accepted[0].ID)
	require.Equal(t, "4", accepted[1].ID)

	accepted[0].Title = "changed"
	require.Empty(t, events[0].Title)
}

func TestClassClone(t *testing.T) {
	c := NewClass("Calculus", "MWF 10:00 AM", "", []Event{{ID: "1", Title: "Midterm"}})
	require.Equal(t, DefaultColorHex, c.ColorHex)
	require.NotEmpty(t, c.ID)

	clone := c.Clone()
	clone.Events[0].Title = "Final"
	require.Equal(t, "Midterm", c.Events[0].Title)
	require.True(t, c.Events[0].Same(clone.Events[0]))
}
