package permission

import "time"

// Source is the provenance of a decision.
type Source string

const (
	SourceRole   Source = "role"
	SourceGroup  Source = "group"
	SourceDirect Source = "direct"
)

// Rule is one stored allow/deny for a key at a context. SourceID is the group
// id for group rules and the user id for direct rules.
type Rule struct {
	Key        Key       `json:"key"`
	Allowed    bool      `json:"allowed"`
	Context    Context   `json:"context"`
	Source     Source    `json:"source"`
	SourceID   string    `json:"source_id"`
	SourceName string    `json:"source_name,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Decision is the effective value of one key together with where it came from.
type Decision struct {
	Key        Key     `json:"key"`
	Allowed    bool    `json:"allowed"`
	Source     Source  `json:"source"`
	SourceID   string  `json:"source_id,omitempty"`
	SourceName string  `json:"source_name,omitempty"`
	Context    Context `json:"context"`
}

// Matrix holds a decision for every known key.
type Matrix struct {
	Context   Context          `json:"context"`
	Role      Role             `json:"role"`
	Decisions map[Key]Decision `json:"permissions"`
}

// Allowed is false for keys missing from the matrix.
func (m Matrix) Allowed(k Key) bool {
	return m.Decisions[k].Allowed
}

func (m Matrix) Decision(k Key) (Decision, bool) {
	d, ok := m.Decisions[k]
	return d, ok
}

// Granted lists the allowed keys in catalog order.
func (m Matrix) Granted() []Key {
	out := make([]Key, 0, len(m.Decisions))
	for k, d := range m.Decisions {
		if d.Allowed {
			out = append(out, k)
		}
	}
	sortKeys(out)
	return out
}

// Entries lists every decision in catalog order.
func (m Matrix) Entries() []Decision {
	keys := make([]Key, 0, len(m.Decisions))
	for k := range m.Decisions {
		keys = append(keys, k)
	}
	sortKeys(keys)
	out := make([]Decision, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.Decisions[k])
	}
	return out
}
