// Package featureflags evaluates the FEATURE_FLAGS setting.
package featureflags

import (
	"hash/fnv"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// SwapRequests gates swap-type book requests. It is on unless configured off.
const SwapRequests = "swap_requests"

// Defaults apply to flags absent from the configured list.
var Defaults = map[string]bool{
	SwapRequests: true,
}

type state struct {
	raw     string
	on      bool
	percent int // -1 when the flag is a plain on/off value
}

// Manager evaluates flags parsed from a comma-separated key=value list,
// for example "swap_requests=on,new_search=25%".
type Manager struct {
	flags map[string]state
}

// NewManager parses raw. Malformed pairs and unknown values are ignored.
func NewManager(raw string) *Manager {
	out := make(map[string]state)
	for pair := range strings.SplitSeq(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" {
			continue
		}
		if s, ok := parseValue(value); ok {
			out[key] = s
		}
	}
	return &Manager{flags: out}
}

func parseValue(v string) (state, bool) {
	switch v {
	case "on", "true", "1":
		return state{raw: v, on: true, percent: -1}, true
	case "off", "false", "0":
		return state{raw: v, percent: -1}, true
	}
	if pctRaw, ok := strings.CutSuffix(v, "%"); ok {
		pct, err := strconv.Atoi(pctRaw)
		if err != nil {
			return state{}, false
		}
		return state{raw: v, percent: min(max(pct, 0), 100)}, true
	}
	return state{}, false
}

// Enabled reports whether name is on for userID. Percentage values roll out
// deterministically per user; user 0 only sees 100% rollouts. An unconfigured
// flag falls back to Defaults.
func (m *Manager) Enabled(name string, userID uint) bool {
	name = normalize(name)
	if m == nil {
		return Defaults[name]
	}
	s, ok := m.flags[name]
	if !ok {
		return Defaults[name]
	}
	if s.percent < 0 {
		return s.on
	}
	switch {
	case s.percent == 0:
		return false
	case s.percent == 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < s.percent
}

// Raw returns the configured values, including defaults that were not overridden.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(Defaults))
	for name, on := range Defaults {
		out[name] = "off"
		if on {
			out[name] = "on"
		}
	}
	if m != nil {
		for name, s := range m.flags {
			out[name] = s.raw
		}
	}
	return out
}

// Snapshot returns evaluated flag status for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	names := slices.Sorted(maps.Keys(m.Raw()))
	out := make(map[string]bool, len(names))
	for _, name := range names {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}
