// Package featureflags evaluates runtime toggles from the FEATURE_FLAGS setting.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Known flags.
const (
	// ClassifierFailOpen lets Decide continue without an anomaly verdict when the
	// classifier is unreachable. Off by default.
	ClassifierFailOpen = "classifier_fail_open"
)

// rollout is a parsed flag value: fully on, fully off, or a percentage of actors.
type rollout struct {
	raw     string
	percent int
}

func parseRollout(value string) (rollout, bool) {
	switch value {
	case "on", "true", "1":
		return rollout{raw: value, percent: 100}, true
	case "off", "false", "0":
		return rollout{raw: value, percent: 0}, true
	}
	if !strings.HasSuffix(value, "%") {
		return rollout{}, false
	}
	pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
	if err != nil {
		return rollout{}, false
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return rollout{raw: value, percent: pct}, true
}

// Manager evaluates flags given as "name=value" pairs, e.g.
// "classifier_fail_open=on" or "classifier_fail_open=10%".
type Manager struct {
	flags map[string]rollout
}

// NewManager parses raw. Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	out := make(map[string]rollout)

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" {
			continue
		}
		if r, ok := parseRollout(value); ok {
			out[key] = r
		}
	}

	return &Manager{flags: out}
}

// Enabled reports whether name is on for the actor. Percentage rollouts are
// deterministic per actor and never enable for actor 0.
func (m *Manager) Enabled(name string, actorID uint) bool {
	if m == nil {
		return false
	}
	r, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}
	switch {
	case r.percent <= 0:
		return false
	case r.percent >= 100:
		return true
	case actorID == 0:
		return false
	}
	return bucket(name, actorID) < r.percent
}

// Raw returns the configured values by flag name.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, r := range m.flags {
		out[k] = r.raw
	}
	return out
}

// Snapshot evaluates every configured flag for one actor.
func (m *Manager) Snapshot(actorID uint) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, actorID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, actorID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), actorID)))
	return int(h.Sum32() % 100)
}
