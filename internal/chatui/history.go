package chatui

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Entry struct {
	Role Role
	Text string
}

// History is the conversation shown in the transcript. It keeps at most max
// entries, dropping the oldest first; max <= 0 means unbounded. It lives only
// as long as the UI session and is never sent to the backend.
type History struct {
	max     int
	entries []Entry
}

func NewHistory(max int) *History {
	return &History{max: max}
}

func (h *History) Append(role Role, text string) {
	h.entries = append(h.entries, Entry{Role: role, Text: text})
	if h.max > 0 && len(h.entries) > h.max {
		h.entries = append(h.entries[:0:0], h.entries[len(h.entries)-h.max:]...)
	}
}

func (h *History) Reset() { h.entries = nil }

func (h *History) Len() int { return len(h.entries) }

// Entries returns a copy of the entries, oldest first.
func (h *History) Entries() []Entry {
	return append([]Entry(nil), h.entries...)
}
