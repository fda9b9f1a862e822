package comm

import "sort"

// Membership is the set of channels a session has confirmed joins for. It is
// mutated only from server-confirmed events (JOIN/PART/KICK for the session's
// own nick), never speculatively when a join request is issued.
type Membership struct {
	set map[string]struct{}
}

// NewMembership returns an empty membership set.
func NewMembership() *Membership {
	return &Membership{set: make(map[string]struct{})}
}

// Add records a confirmed join. Adding a present channel is a no-op.
func (m *Membership) Add(channel string) {
	m.set[channel] = struct{}{}
}

// Remove records a confirmed part or kick. Removing an absent channel is a
// no-op.
func (m *Membership) Remove(channel string) {
	delete(m.set, channel)
}

// Has reports whether the session is currently in channel.
func (m *Membership) Has(channel string) bool {
	_, ok := m.set[channel]
	return ok
}

// Len returns the number of joined channels.
func (m *Membership) Len() int {
	return len(m.set)
}

// List returns the joined channels sorted for stable logging.
func (m *Membership) List() []string {
	out := make([]string, 0, len(m.set))
	for ch := range m.set {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}
