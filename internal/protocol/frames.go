package protocol

import "fmt"

// UserEntry is one roster row in a LIST_USERS_REPLY frame.
type UserEntry struct {
	Name   string
	Status Status
}

// HistoryEntry is one stored message in a HISTORY_REPLY frame.
type HistoryEntry struct {
	Author string
	Text   string
}

// maxReplyEntries is the largest count a single-byte length prefix can carry.
const maxReplyEntries = 255

// EncodeError builds an ERROR frame.
func EncodeError(code ErrorCode) []byte {
	b := NewBuilder()
	b.PutU8(byte(OpError))
	b.PutU8(byte(code))
	return b.Bytes()
}

// EncodeUserList builds a LIST_USERS_REPLY frame. When the roster is longer
// than 255 entries, the first 255 are sent.
func EncodeUserList(users []UserEntry) ([]byte, error) {
	if len(users) > maxReplyEntries {
		users = users[:maxReplyEntries]
	}
	b := NewBuilder()
	b.PutU8(byte(OpListUsersReply))
	b.PutU8(byte(len(users)))
	for _, u := range users {
		if err := b.PutStr8(u.Name); err != nil {
			return nil, err
		}
		b.PutU8(byte(u.Status))
	}
	return b.Bytes(), nil
}

// EncodeUserInfo builds a USER_INFO_REPLY frame.
func EncodeUserInfo(name string, st Status) ([]byte, error) {
	return encodeNameStatus(OpUserInfoReply, name, st)
}

// EncodeUserJoined builds a USER_JOINED frame.
func EncodeUserJoined(name string, st Status) ([]byte, error) {
	return encodeNameStatus(OpUserJoined, name, st)
}

// EncodeStatusChange builds a USER_STATUS_CHANGE frame. Disconnects ride the
// same opcode with StatusDisconnected; there is no dedicated disconnect frame.
func EncodeStatusChange(name string, st Status) ([]byte, error) {
	return encodeNameStatus(OpStatusChange, name, st)
}

// EncodeMessage builds a NEW_MESSAGE frame. The text must already be clipped
// to MaxTextLen by the caller.
func EncodeMessage(sender, text string) ([]byte, error) {
	b := NewBuilder()
	b.PutU8(byte(OpNewMessage))
	if err := b.PutStr8(sender); err != nil {
		return nil, err
	}
	if err := b.PutStr8(text); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// EncodeHistory builds a HISTORY_REPLY frame. Logs longer than 255 entries
// are clipped to the first 255, oldest first.
func EncodeHistory(entries []HistoryEntry) ([]byte, error) {
	if len(entries) > maxReplyEntries {
		entries = entries[:maxReplyEntries]
	}
	b := NewBuilder()
	b.PutU8(byte(OpHistoryReply))
	b.PutU8(byte(len(entries)))
	for _, e := range entries {
		if err := b.PutStr8(e.Author); err != nil {
			return nil, err
		}
		if err := b.PutStr8(e.Text); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

func encodeNameStatus(op Opcode, name string, st Status) ([]byte, error) {
	b := NewBuilder()
	b.PutU8(byte(op))
	if err := b.PutStr8(name); err != nil {
		return nil, err
	}
	b.PutU8(byte(st))
	return b.Bytes(), nil
}

// ServerFrame is a decoded server-to-client frame. Which fields are populated
// depends on Op. Used by the chattest client and by tests that assert on
// fan-out payloads.
type ServerFrame struct {
	Op        Opcode
	ErrorCode ErrorCode
	Name      string
	Status    Status
	Sender    string
	Text      string
	Users     []UserEntry
	History   []HistoryEntry
}

// DecodeServerFrame parses one server-to-client frame.
func DecodeServerFrame(buf []byte) (*ServerFrame, error) {
	r := NewReader(buf)
	op, err := r.U8()
	if err != nil {
		return nil, err
	}
	f := &ServerFrame{Op: Opcode(op)}

	switch f.Op {
	case OpError:
		code, err := r.U8()
		if err != nil {
			return nil, err
		}
		f.ErrorCode = ErrorCode(code)

	case OpUserInfoReply, OpUserJoined, OpStatusChange:
		if f.Name, err = r.Str8(); err != nil {
			return nil, err
		}
		st, err := r.U8()
		if err != nil {
			return nil, err
		}
		f.Status = Status(st)

	case OpNewMessage:
		if f.Sender, err = r.Str8(); err != nil {
			return nil, err
		}
		if f.Text, err = r.Str8(); err != nil {
			return nil, err
		}

	case OpListUsersReply:
		n, err := r.U8()
		if err != nil {
			return nil, err
		}
		f.Users = make([]UserEntry, 0, n)
		for i := 0; i < int(n); i++ {
			name, err := r.Str8()
			if err != nil {
				return nil, err
			}
			st, err := r.U8()
			if err != nil {
				return nil, err
			}
			f.Users = append(f.Users, UserEntry{Name: name, Status: Status(st)})
		}

	case OpHistoryReply:
		n, err := r.U8()
		if err != nil {
			return nil, err
		}
		f.History = make([]HistoryEntry, 0, n)
		for i := 0; i < int(n); i++ {
			author, err := r.Str8()
			if err != nil {
				return nil, err
			}
			text, err := r.Str8()
			if err != nil {
				return nil, err
			}
			f.History = append(f.History, HistoryEntry{Author: author, Text: text})
		}

	default:
		return nil, fmt.Errorf("protocol: unknown server opcode %d", op)
	}

	return f, nil
}
