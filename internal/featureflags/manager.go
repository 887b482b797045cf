// Package featureflags evaluates runtime feature toggles with optional
// percentage rollouts.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// defaults holds the shipped state of every flag the backend consults.
// FEATURE_FLAGS overrides these, e.g. "web_push=off,typing_indicators=25%".
var defaults = map[string]string{
	// Web Push delivery of notifications (VAPID keys must also be set).
	"web_push": "on",
	// Background reaping of stale Redis presence entries.
	"presence_reaper": "on",
	// Relaying typing_start/typing_stop frames between riders.
	"typing_indicators": "on",
}

type flagKind int

const (
	flagOff flagKind = iota
	flagOn
	flagPercent
)

// flagValue is a flag setting parsed once at construction.
type flagValue struct {
	kind    flagKind
	percent int
	raw     string
}

// Manager answers Enabled checks for a fixed flag set. Evaluation is
// allocation-free; all parsing happens in NewManager.
type Manager struct {
	flags map[string]flagValue
}

// NewManager builds a Manager from the shipped defaults plus a comma-separated
// override string. Unparseable entries are dropped; unknown flag names are
// accepted so deployments can stage flags ahead of the code that reads them.
func NewManager(overrides string) *Manager {
	flags := make(map[string]flagValue, len(defaults))
	for name, raw := range defaults {
		if v, ok := parseValue(raw); ok {
			flags[name] = v
		}
	}

	for _, pair := range strings.Split(overrides, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := normalize(parts[0])
		if name == "" {
			continue
		}
		if v, ok := parseValue(parts[1]); ok {
			flags[name] = v
		}
	}

	return &Manager{flags: flags}
}

func parseValue(raw string) (flagValue, bool) {
	raw = normalize(raw)
	switch raw {
	case "on", "true", "1":
		return flagValue{kind: flagOn, raw: raw}, true
	case "off", "false", "0":
		return flagValue{kind: flagOff, raw: raw}, true
	}

	if strings.HasSuffix(raw, "%") {
		pct, err := strconv.Atoi(strings.TrimSuffix(raw, "%"))
		if err != nil || pct < 0 || pct > 100 {
			return flagValue{}, false
		}
		return flagValue{kind: flagPercent, percent: pct, raw: raw}, true
	}

	return flagValue{}, false
}

// Enabled reports whether a flag is on for the given user. Percentage flags
// bucket users deterministically; userID zero (no user in scope) only passes
// a 100% rollout. Unknown flags are off.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}

	v, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch v.kind {
	case flagOn:
		return true
	case flagPercent:
		if v.percent >= 100 {
			return true
		}
		if v.percent <= 0 || userID == 0 {
			return false
		}
		return rolloutBucket(name, userID) < v.percent
	default:
		return false
	}
}

// Raw returns the effective flag settings as configured strings.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for name, v := range m.flags {
		out[name] = v.raw
	}
	return out
}

// Snapshot evaluates every flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), userID)))
	return int(h.Sum32() % 100)
}
