// Package protocol implements the length-prefixed binary chat protocol.
//
// Every frame is a sequence of two primitives: u8 (one unsigned byte) and
// str8 (one u8 length followed by that many payload bytes). There is no
// multi-byte integer anywhere on the wire, so byte order never comes into
// play. The first u8 of a frame is the opcode.
package protocol

// Opcode identifies the frame type. Values 1-5 flow client to server,
// values 50-56 flow server to client.
type Opcode byte

const (
	OpListUsers    Opcode = 1
	OpGetUserInfo  Opcode = 2
	OpChangeStatus Opcode = 3
	OpSendMessage  Opcode = 4
	OpGetHistory   Opcode = 5

	OpError          Opcode = 50
	OpListUsersReply Opcode = 51
	OpUserInfoReply  Opcode = 52
	OpUserJoined     Opcode = 53
	OpStatusChange   Opcode = 54
	OpNewMessage     Opcode = 55
	OpHistoryReply   Opcode = 56
)

// String returns the wire name of the opcode for logging.
func (op Opcode) String() string {
	switch op {
	case OpListUsers:
		return "LIST_USERS"
	case OpGetUserInfo:
		return "GET_USER_INFO"
	case OpChangeStatus:
		return "CHANGE_STATUS"
	case OpSendMessage:
		return "SEND_MESSAGE"
	case OpGetHistory:
		return "GET_HISTORY"
	case OpError:
		return "ERROR"
	case OpListUsersReply:
		return "LIST_USERS_REPLY"
	case OpUserInfoReply:
		return "USER_INFO_REPLY"
	case OpUserJoined:
		return "USER_JOINED"
	case OpStatusChange:
		return "USER_STATUS_CHANGE"
	case OpNewMessage:
		return "NEW_MESSAGE"
	case OpHistoryReply:
		return "HISTORY_REPLY"
	}
	return "UNKNOWN"
}

// Status is a user's presence state as carried on the wire.
type Status byte

const (
	StatusDisconnected Status = 0
	StatusActive       Status = 1
	StatusBusy         Status = 2
	StatusInactive     Status = 3
)

// Valid reports whether the byte is one of the four defined presence states.
func (s Status) Valid() bool {
	return s <= StatusInactive
}

// String returns a readable name for logs and test failure messages.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusActive:
		return "active"
	case StatusBusy:
		return "busy"
	case StatusInactive:
		return "inactive"
	}
	return "invalid"
}

// ErrorCode is the single-byte payload of an ERROR frame.
type ErrorCode byte

const (
	ErrCodeUnknownUser   ErrorCode = 1
	ErrCodeInvalidStatus ErrorCode = 2
	ErrCodeEmptyMessage  ErrorCode = 3
	ErrCodeDestOffline   ErrorCode = 4
)

const (
	// GeneralChat is the reserved destination that addresses the broadcast
	// channel. It is never a legal username.
	GeneralChat = "~"

	// MaxUsernameLen is the maximum username length in bytes.
	MaxUsernameLen = 20

	// MaxTextLen is the maximum message text length in bytes. Longer texts
	// are truncated, never rejected.
	MaxTextLen = 255
)

// ValidUsername reports whether name is acceptable for admission:
// 1..20 bytes and not the reserved broadcast marker.
func ValidUsername(name string) bool {
	return len(name) >= 1 && len(name) <= MaxUsernameLen && name != GeneralChat
}

// TruncateText clips message text to the first MaxTextLen bytes.
func TruncateText(text string) string {
	if len(text) > MaxTextLen {
		return text[:MaxTextLen]
	}
	return text
}
