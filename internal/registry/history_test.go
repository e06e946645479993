package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/protocol"
)

func TestChatID_Symmetric(t *testing.T) {
	assert.Equal(t, "alice|bob", ChatID("alice", "bob"))
	assert.Equal(t, "alice|bob", ChatID("bob", "alice"))
	assert.Equal(t, "alice|alice", ChatID("alice", "alice"))
}

func TestHistory_GeneralOrder(t *testing.T) {
	r := New()
	r.AppendGeneral("alice", "first")
	r.AppendGeneral("bob", "second")
	r.AppendGeneral("alice", "third")

	log := r.History(protocol.GeneralChat)
	require.Len(t, log, 3)
	assert.Equal(t, protocol.HistoryEntry{Author: "alice", Text: "first"}, log[0])
	assert.Equal(t, protocol.HistoryEntry{Author: "bob", Text: "second"}, log[1])
	assert.Equal(t, protocol.HistoryEntry{Author: "alice", Text: "third"}, log[2])
}

func TestHistory_PrivateSharedBothDirections(t *testing.T) {
	r := New()
	r.AppendPrivate("alice", "bob", "alice", "hi bob")
	r.AppendPrivate("bob", "alice", "bob", "hi alice")

	log := r.History(ChatID("bob", "alice"))
	require.Len(t, log, 2)
	assert.Equal(t, "alice", log[0].Author)
	assert.Equal(t, "bob", log[1].Author)

	// The pair's log is distinct from the broadcast channel and from other
	// pairs.
	assert.Empty(t, r.History(protocol.GeneralChat))
	assert.Empty(t, r.History(ChatID("alice", "carol")))
}

func TestHistory_Empty(t *testing.T) {
	r := New()
	assert.Empty(t, r.History(protocol.GeneralChat))
	assert.Empty(t, r.History(ChatID("alice", "bob")))
}

func TestHistory_TruncatesStoredText(t *testing.T) {
	r := New()
	long := strings.Repeat("z", 400)
	r.AppendGeneral("alice", long)

	log := r.History(protocol.GeneralChat)
	require.Len(t, log, 1)
	assert.Len(t, log[0].Text, protocol.MaxTextLen)
	assert.Equal(t, long[:protocol.MaxTextLen], log[0].Text)
}

func TestHistory_ReturnsCopy(t *testing.T) {
	r := New()
	r.AppendGeneral("alice", "original")

	log := r.History(protocol.GeneralChat)
	log[0].Text = "mutated"

	again := r.History(protocol.GeneralChat)
	assert.Equal(t, "original", again[0].Text)
}

func TestHistory_SurvivesDisconnect(t *testing.T) {
	r := New()
	conn := newFakeSender()
	_, err := r.Admit("alice", conn, "10.0.0.1")
	require.NoError(t, err)
	r.AppendGeneral("alice", "before the drop")

	_, ok := r.Detach(conn)
	require.True(t, ok)

	log := r.History(protocol.GeneralChat)
	require.Len(t, log, 1)
	assert.Equal(t, "before the drop", log[0].Text)
}
