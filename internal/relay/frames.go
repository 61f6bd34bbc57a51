package relay

import (
	"encoding/json"
	"fmt"
	"time"
)

// FrameType discriminates every frame on the wire.
type FrameType string

const (
	// Client -> server
	FrameDirectMessage FrameType = "direct-message"
	FrameGroupMessage  FrameType = "group-message"
	FrameJoinGroup     FrameType = "join-group"
	FrameLeaveGroup    FrameType = "leave-group"

	// Server -> client
	FrameGroupJoin  FrameType = "group-join"
	FrameGroupLeave FrameType = "group-leave"
	FrameError      FrameType = "error"
)

// Inbound is the closed set of frames a client may send. Every variant is
// fully validated by ParseInbound before any handler sees it.
type Inbound interface {
	inbound()
}

type DirectMessageFrame struct {
	ReceiverID string
	Content    string
}

type GroupMessageFrame struct {
	GroupID string
	Content string
}

type JoinGroupFrame struct {
	GroupID string
}

type LeaveGroupFrame struct {
	GroupID string
}

func (DirectMessageFrame) inbound() {}
func (GroupMessageFrame) inbound()  {}
func (JoinGroupFrame) inbound()     {}
func (LeaveGroupFrame) inbound()    {}

// envelope is the raw JSON shape shared by all inbound frames.
type envelope struct {
	Type       FrameType `json:"type"`
	ReceiverID string    `json:"receiverId"`
	GroupID    string    `json:"groupId"`
	Content    string    `json:"content"`
}

// ParseInbound decodes and validates one client frame. Malformed JSON,
// unknown types and missing fields all come back as validation errors; the
// caller reports them and keeps the session alive.
func ParseInbound(data []byte) (Inbound, *Error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, validationError("Invalid message format")
	}

	switch env.Type {
	case FrameDirectMessage:
		if env.ReceiverID == "" || env.Content == "" {
			return nil, validationError("receiverId and content are required")
		}
		return DirectMessageFrame{ReceiverID: env.ReceiverID, Content: env.Content}, nil

	case FrameGroupMessage:
		if env.GroupID == "" || env.Content == "" {
			return nil, validationError("groupId and content are required")
		}
		return GroupMessageFrame{GroupID: env.GroupID, Content: env.Content}, nil

	case FrameJoinGroup:
		if env.GroupID == "" {
			return nil, validationError("groupId is required")
		}
		return JoinGroupFrame{GroupID: env.GroupID}, nil

	case FrameLeaveGroup:
		if env.GroupID == "" {
			return nil, validationError("groupId is required")
		}
		return LeaveGroupFrame{GroupID: env.GroupID}, nil

	default:
		return nil, validationError(fmt.Sprintf("Unknown message type: %s", env.Type))
	}
}

// MessageEnvelope is the outgoing shape of both direct and group messages.
// The timestamp is server-assigned, taken from the persisted record.
type MessageEnvelope struct {
	Type       FrameType `json:"type"`
	MessageID  string    `json:"messageId"`
	GroupID    string    `json:"groupId,omitempty"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// MembershipEvent notifies group members about a join or leave.
type MembershipEvent struct {
	Type      FrameType `json:"type"`
	GroupID   string    `json:"groupId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorFrame reports a failed request back to its initiator.
type ErrorFrame struct {
	Type    FrameType `json:"type"`
	Message string    `json:"message"`
}

func errorPayload(message string) []byte {
	payload, _ := json.Marshal(ErrorFrame{Type: FrameError, Message: message})
	return payload
}

func marshalFrame(frame any) ([]byte, *Error) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "Error processing message", Err: err}
	}
	return payload, nil
}
