package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsShipEnabled(t *testing.T) {
	m := NewManager("")

	assert.True(t, m.Enabled("web_push", 0))
	assert.True(t, m.Enabled("presence_reaper", 0))
	assert.True(t, m.Enabled("typing_indicators", 7))
}

func TestOverridesReplaceDefaults(t *testing.T) {
	m := NewManager("web_push=off, TYPING_INDICATORS = false ,dark_launch=on")

	assert.False(t, m.Enabled("web_push", 0), "override should switch the default off")
	assert.False(t, m.Enabled("typing_indicators", 7))
	assert.True(t, m.Enabled("presence_reaper", 0), "untouched defaults stay on")
	assert.True(t, m.Enabled("dark_launch", 0), "unknown flag names are staged, not rejected")
}

func TestPercentageRollout(t *testing.T) {
	m := NewManager("web_push=100%,typing_indicators=0%,group_ride_feed=25%")

	assert.True(t, m.Enabled("web_push", 1))
	assert.False(t, m.Enabled("typing_indicators", 1))

	first := m.Enabled("group_ride_feed", 42)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, m.Enabled("group_ride_feed", 42),
			"rollout must be deterministic per rider")
	}

	assert.False(t, m.Enabled("group_ride_feed", 0),
		"partial rollouts need a rider in scope")

	// A partial rollout splits the population rather than collapsing to
	// all-on or all-off.
	enabled := 0
	for userID := uint(1); userID <= 200; userID++ {
		if m.Enabled("group_ride_feed", userID) {
			enabled++
		}
	}
	assert.Greater(t, enabled, 0)
	assert.Less(t, enabled, 200)
}

func TestUnparseableEntriesDropped(t *testing.T) {
	m := NewManager("web_push=maybe,=on,broken,typing_indicators=150%")

	raw := m.Raw()
	assert.Equal(t, "on", raw["web_push"], "bad value keeps the default")
	assert.Equal(t, "on", raw["typing_indicators"], "out-of-range percent keeps the default")
	assert.False(t, m.Enabled("broken", 1))
}

func TestSnapshotCoversEveryFlag(t *testing.T) {
	m := NewManager("group_ride_feed=40%")

	snap := m.Snapshot(123)
	require.Len(t, snap, len(m.Raw()))
	assert.Contains(t, snap, "web_push")
	assert.Contains(t, snap, "group_ride_feed")
}

func TestNilManagerIsOff(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled("web_push", 1))
}
