package relay

import (
	"encoding/json"
	"testing"
)

func TestParseInbound(t *testing.T) {
	t.Run("DirectMessage", func(t *testing.T) {
		frame, perr := ParseInbound([]byte(`{"type":"direct-message","receiverId":"u2","content":"hi"}`))
		if perr != nil {
			t.Fatalf("unexpected error: %v", perr)
		}
		dm, ok := frame.(DirectMessageFrame)
		if !ok {
			t.Fatalf("expected DirectMessageFrame, got %T", frame)
		}
		if dm.ReceiverID != "u2" || dm.Content != "hi" {
			t.Errorf("unexpected frame: %+v", dm)
		}
	})

	t.Run("GroupMessage", func(t *testing.T) {
		frame, perr := ParseInbound([]byte(`{"type":"group-message","groupId":"g1","content":"hello"}`))
		if perr != nil {
			t.Fatalf("unexpected error: %v", perr)
		}
		gm, ok := frame.(GroupMessageFrame)
		if !ok {
			t.Fatalf("expected GroupMessageFrame, got %T", frame)
		}
		if gm.GroupID != "g1" || gm.Content != "hello" {
			t.Errorf("unexpected frame: %+v", gm)
		}
	})

	t.Run("JoinAndLeave", func(t *testing.T) {
		frame, perr := ParseInbound([]byte(`{"type":"join-group","groupId":"g1"}`))
		if perr != nil {
			t.Fatalf("unexpected error: %v", perr)
		}
		if _, ok := frame.(JoinGroupFrame); !ok {
			t.Fatalf("expected JoinGroupFrame, got %T", frame)
		}

		frame, perr = ParseInbound([]byte(`{"type":"leave-group","groupId":"g1"}`))
		if perr != nil {
			t.Fatalf("unexpected error: %v", perr)
		}
		if _, ok := frame.(LeaveGroupFrame); !ok {
			t.Fatalf("expected LeaveGroupFrame, got %T", frame)
		}
	})

	t.Run("MissingFields", func(t *testing.T) {
		cases := []struct {
			name    string
			payload string
			message string
		}{
			{"DirectWithoutReceiver", `{"type":"direct-message","content":"hi"}`, "receiverId and content are required"},
			{"DirectWithoutContent", `{"type":"direct-message","receiverId":"u2"}`, "receiverId and content are required"},
			{"GroupWithoutGroup", `{"type":"group-message","content":"hi"}`, "groupId and content are required"},
			{"GroupWithoutContent", `{"type":"group-message","groupId":"g1"}`, "groupId and content are required"},
			{"JoinWithoutGroup", `{"type":"join-group"}`, "groupId is required"},
			{"LeaveWithoutGroup", `{"type":"leave-group"}`, "groupId is required"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				frame, perr := ParseInbound([]byte(tc.payload))
				if perr == nil {
					t.Fatalf("expected error, got frame %+v", frame)
				}
				if perr.Kind != KindValidation {
					t.Errorf("expected validation kind, got %s", perr.Kind)
				}
				if perr.Message != tc.message {
					t.Errorf("expected message %q, got %q", tc.message, perr.Message)
				}
			})
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, perr := ParseInbound([]byte(`{"type":"poke","receiverId":"u2"}`))
		if perr == nil {
			t.Fatal("expected error for unknown type")
		}
		if perr.Message != "Unknown message type: poke" {
			t.Errorf("unexpected message: %q", perr.Message)
		}
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		_, perr := ParseInbound([]byte(`{not json`))
		if perr == nil {
			t.Fatal("expected error for malformed payload")
		}
		if perr.Message != "Invalid message format" {
			t.Errorf("unexpected message: %q", perr.Message)
		}
		if perr.Fatal() {
			t.Error("a malformed frame must not be fatal")
		}
	})
}

func TestErrorPayload(t *testing.T) {
	var frame ErrorFrame
	if err := json.Unmarshal(errorPayload("boom"), &frame); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	if frame.Type != FrameError {
		t.Errorf("expected type %q, got %q", FrameError, frame.Type)
	}
	if frame.Message != "boom" {
		t.Errorf("expected message %q, got %q", "boom", frame.Message)
	}
}

func TestMessageEnvelopeOmitsEmptyGroup(t *testing.T) {
	payload, perr := marshalFrame(MessageEnvelope{
		Type:       FrameDirectMessage,
		MessageID:  "m1",
		SenderID:   "u1",
		SenderName: "Alice",
		Content:    "hi",
	})
	if perr != nil {
		t.Fatalf("unexpected error: %v", perr)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if _, present := raw["groupId"]; present {
		t.Error("direct message envelope must not carry a groupId field")
	}
}
