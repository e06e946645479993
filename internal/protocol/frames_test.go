package protocol

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeError_Wire(t *testing.T) {
	assert.Equal(t, []byte{50, 4}, EncodeError(ErrCodeDestOffline))
	assert.Equal(t, []byte{50, 1}, EncodeError(ErrCodeUnknownUser))
}

func TestEncodeUserList_Wire(t *testing.T) {
	frame, err := EncodeUserList([]UserEntry{{Name: "alice", Status: StatusActive}})
	require.NoError(t, err)

	want := []byte{51, 1, 5, 'a', 'l', 'i', 'c', 'e', 1}
	assert.Equal(t, want, frame)
}

func TestEncodeUserList_Empty(t *testing.T) {
	frame, err := EncodeUserList(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{51, 0}, frame)
}

func TestEncodeUserList_ClipsTo255(t *testing.T) {
	users := make([]UserEntry, 300)
	for i := range users {
		users[i] = UserEntry{Name: fmt.Sprintf("user%03d", i), Status: StatusActive}
	}
	frame, err := EncodeUserList(users)
	require.NoError(t, err)

	f, err := DecodeServerFrame(frame)
	require.NoError(t, err)
	require.Len(t, f.Users, 255)
	assert.Equal(t, "user000", f.Users[0].Name)
	assert.Equal(t, "user254", f.Users[254].Name)
}

func TestEncodeUserInfo_Wire(t *testing.T) {
	frame, err := EncodeUserInfo("bob", StatusBusy)
	require.NoError(t, err)
	assert.Equal(t, []byte{52, 3, 'b', 'o', 'b', 2}, frame)
}

func TestEncodeUserJoined_Wire(t *testing.T) {
	frame, err := EncodeUserJoined("bob", StatusActive)
	require.NoError(t, err)
	assert.Equal(t, []byte{53, 3, 'b', 'o', 'b', 1}, frame)
}

func TestEncodeStatusChange_Wire(t *testing.T) {
	frame, err := EncodeStatusChange("alice", StatusInactive)
	require.NoError(t, err)
	assert.Equal(t, []byte{54, 5, 'a', 'l', 'i', 'c', 'e', 3}, frame)
}

func TestEncodeStatusChange_Disconnect(t *testing.T) {
	// Disconnects are a status change to 0, not a separate frame type.
	frame, err := EncodeStatusChange("alice", StatusDisconnected)
	require.NoError(t, err)
	assert.Equal(t, []byte{54, 5, 'a', 'l', 'i', 'c', 'e', 0}, frame)
}

func TestEncodeMessage_Wire(t *testing.T) {
	frame, err := EncodeMessage("alice", "hi")
	require.NoError(t, err)
	assert.Equal(t, []byte{55, 5, 'a', 'l', 'i', 'c', 'e', 2, 'h', 'i'}, frame)
}

func TestEncodeHistory_Wire(t *testing.T) {
	frame, err := EncodeHistory([]HistoryEntry{
		{Author: "alice", Text: "hi"},
		{Author: "bob", Text: "yo"},
	})
	require.NoError(t, err)

	want := []byte{
		56, 2,
		5, 'a', 'l', 'i', 'c', 'e', 2, 'h', 'i',
		3, 'b', 'o', 'b', 2, 'y', 'o',
	}
	assert.Equal(t, want, frame)
}

func TestEncodeHistory_ClipsToFirst255(t *testing.T) {
	entries := make([]HistoryEntry, 400)
	for i := range entries {
		entries[i] = HistoryEntry{Author: "alice", Text: fmt.Sprintf("msg %d", i)}
	}
	frame, err := EncodeHistory(entries)
	require.NoError(t, err)

	f, err := DecodeServerFrame(frame)
	require.NoError(t, err)
	require.Len(t, f.History, 255)
	assert.Equal(t, "msg 0", f.History[0].Text)
	assert.Equal(t, "msg 254", f.History[254].Text)
}

func TestDecodeServerFrame_Error(t *testing.T) {
	f, err := DecodeServerFrame([]byte{50, 2})
	require.NoError(t, err)
	assert.Equal(t, OpError, f.Op)
	assert.Equal(t, ErrCodeInvalidStatus, f.ErrorCode)
}

func TestDecodeServerFrame_Message(t *testing.T) {
	frame, err := EncodeMessage("bob", "hello there")
	require.NoError(t, err)

	f, err := DecodeServerFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, OpNewMessage, f.Op)
	assert.Equal(t, "bob", f.Sender)
	assert.Equal(t, "hello there", f.Text)
}

func TestDecodeServerFrame_UnknownOpcode(t *testing.T) {
	_, err := DecodeServerFrame([]byte{99})
	assert.Error(t, err)
}

func TestDecodeServerFrame_Truncated(t *testing.T) {
	_, err := DecodeServerFrame(nil)
	assert.ErrorIs(t, err, ErrTruncated)

	// LIST_USERS_REPLY promising one entry with no payload.
	_, err = DecodeServerFrame([]byte{51, 1})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestEncodeUserList_OverlongName(t *testing.T) {
	_, err := EncodeUserList([]UserEntry{{Name: strings.Repeat("x", 256), Status: StatusActive}})
	assert.ErrorIs(t, err, ErrOverlong)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "active", StatusActive.String())
	assert.Equal(t, "busy", StatusBusy.String())
	assert.Equal(t, "inactive", StatusInactive.String())
}

func TestStatusValid(t *testing.T) {
	for st := StatusDisconnected; st <= StatusInactive; st++ {
		assert.True(t, st.Valid(), st)
	}
	assert.False(t, Status(4).Valid())
	assert.False(t, Status(255).Valid())
}
