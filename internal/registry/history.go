package registry

import (
	"strings"

	"parley/internal/protocol"
)

// ChatID returns the canonical history key for a private pair: the
// lexicographically smaller name, a pipe, then the larger. Symmetric in
// (a, b) so both directions of a conversation land in one log.
func ChatID(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}

// AppendGeneral appends a message to the broadcast channel's log. Text is
// clipped to the wire limit before storage.
func (r *Registry) AppendGeneral(author, text string) {
	r.appendHistory(protocol.GeneralChat, author, text)
}

// AppendPrivate appends a message to the canonical log for the (a, b) pair.
func (r *Registry) AppendPrivate(a, b, author, text string) {
	r.appendHistory(ChatID(a, b), author, text)
}

// History returns a copy of the log stored under chatID, oldest first.
// Use protocol.GeneralChat for the broadcast channel and ChatID for a
// private pair. A chat with no messages yields an empty slice.
func (r *Registry) History(chatID string) []protocol.HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.history[chatID]
	out := make([]protocol.HistoryEntry, len(log))
	copy(out, log)
	return out
}

func (r *Registry) appendHistory(chatID, author, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history[chatID] = append(r.history[chatID], protocol.HistoryEntry{
		Author: author,
		Text:   protocol.TruncateText(text),
	})
}
