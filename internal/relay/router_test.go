package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"chatrelay/internal/models"
	"chatrelay/internal/store"
)

// fakeStore implements the router's store slice in memory.
type fakeStore struct {
	users    map[string]*models.User
	groups   map[string]*models.Group
	messages []*models.Message

	failCreateMessage error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  make(map[string]*models.User),
		groups: make(map[string]*models.Group),
	}
}

func (f *fakeStore) addUser(id, name string) {
	f.users[id] = &models.User{ID: id, Name: name, Role: models.RoleUser, IsVerified: true}
}

func (f *fakeStore) addGroup(id string, members ...string) {
	f.groups[id] = &models.Group{ID: id, Name: id, Members: members}
}

func (f *fakeStore) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) GetGroup(_ context.Context, id string) (*models.Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return g, nil
}

func (f *fakeStore) IsUserInGroup(_ context.Context, userID, groupID string) (bool, error) {
	g, ok := f.groups[groupID]
	if !ok {
		return false, store.ErrNotFound
	}
	return g.HasMember(userID), nil
}

func (f *fakeStore) GetGroupMembers(_ context.Context, groupID string) ([]models.User, error) {
	g, ok := f.groups[groupID]
	if !ok {
		return nil, store.ErrNotFound
	}
	members := make([]models.User, 0, len(g.Members))
	for _, id := range g.Members {
		if u, ok := f.users[id]; ok {
			members = append(members, *u)
		} else {
			members = append(members, models.User{ID: id})
		}
	}
	return members, nil
}

func (f *fakeStore) AddUserToGroup(_ context.Context, groupID, userID string) error {
	g, ok := f.groups[groupID]
	if !ok {
		return store.ErrNotFound
	}
	if !g.HasMember(userID) {
		g.Members = append(g.Members, userID)
	}
	return nil
}

func (f *fakeStore) RemoveUserFromGroup(_ context.Context, userID, groupID string) error {
	g, ok := f.groups[groupID]
	if !ok {
		return store.ErrNotFound
	}
	kept := g.Members[:0]
	for _, id := range g.Members {
		if id != userID {
			kept = append(kept, id)
		}
	}
	g.Members = kept
	return nil
}

func (f *fakeStore) CreateMessage(_ context.Context, senderID string, target models.Target, content string) (*models.Message, error) {
	if f.failCreateMessage != nil {
		return nil, f.failCreateMessage
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	msg := &models.Message{
		ID:        fmt.Sprintf("m%d", len(f.messages)+1),
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if id, ok := target.Receiver(); ok {
		msg.ReceiverID = id
	}
	if id, ok := target.Group(); ok {
		msg.GroupID = id
	}
	f.messages = append(f.messages, msg)
	return msg, nil
}

// fakeSender is both the originating connection and a registry handle.
type fakeSender struct {
	fakeHandle
	id     string
	name   string
	joined []string
	left   []string
}

func (f *fakeSender) UserID() string   { return f.id }
func (f *fakeSender) UserName() string { return f.name }

func (f *fakeSender) JoinedGroup(groupID string) { f.joined = append(f.joined, groupID) }
func (f *fakeSender) LeftGroup(groupID string)   { f.left = append(f.left, groupID) }

func (f *fakeSender) lastEnvelope(t *testing.T) MessageEnvelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.delivered) == 0 {
		t.Fatal("no payload delivered")
	}
	var env MessageEnvelope
	if err := json.Unmarshal(f.delivered[len(f.delivered)-1], &env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	return env
}

func newTestRouter(t *testing.T) (*Router, *fakeStore, *Registry) {
	t.Helper()
	st := newFakeStore()
	registry := NewRegistry()
	rt := NewRouter(st, registry, nil)
	rt.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return rt, st, registry
}

func TestDirectMessage(t *testing.T) {
	t.Run("OfflineReceiverStillPersists", func(t *testing.T) {
		rt, st, _ := newTestRouter(t)
		st.addUser("u1", "Alice")
		sender := &fakeSender{id: "u1", name: "Alice"}

		derr := rt.Dispatch(context.Background(), sender, DirectMessageFrame{ReceiverID: "u2", Content: "hi"})
		if derr != nil {
			t.Fatalf("unexpected error: %v", derr)
		}

		if len(st.messages) != 1 {
			t.Fatalf("expected 1 persisted message, got %d", len(st.messages))
		}
		if st.messages[0].ReceiverID != "u2" || st.messages[0].GroupID != "" {
			t.Errorf("unexpected persisted message: %+v", st.messages[0])
		}
		// The sender still gets the echo with the server-assigned identity.
		env := sender.lastEnvelope(t)
		if env.MessageID != "m1" || env.SenderName != "Alice" {
			t.Errorf("unexpected echo envelope: %+v", env)
		}
	})

	t.Run("OnlineReceiverGetsPayload", func(t *testing.T) {
		rt, st, registry := newTestRouter(t)
		st.addUser("u1", "Alice")
		st.addUser("u2", "Bob")
		sender := &fakeSender{id: "u1", name: "Alice"}
		receiver := &fakeSender{id: "u2", name: "Bob"}
		registry.Register("u2", receiver)

		if derr := rt.Dispatch(context.Background(), sender, DirectMessageFrame{ReceiverID: "u2", Content: "hi"}); derr != nil {
			t.Fatalf("unexpected error: %v", derr)
		}

		env := receiver.lastEnvelope(t)
		if env.Type != FrameDirectMessage || env.SenderID != "u1" || env.Content != "hi" {
			t.Errorf("unexpected envelope: %+v", env)
		}
		if env.Timestamp.IsZero() {
			t.Error("envelope timestamp must come from the persisted record")
		}
		if sender.deliveries() != 1 {
			t.Errorf("expected sender echo, got %d deliveries", sender.deliveries())
		}
	})

	t.Run("PersistenceFailureDeliversNothing", func(t *testing.T) {
		rt, st, registry := newTestRouter(t)
		st.addUser("u1", "Alice")
		st.failCreateMessage = errors.New("write concern failed")
		sender := &fakeSender{id: "u1", name: "Alice"}
		receiver := &fakeSender{id: "u2", name: "Bob"}
		registry.Register("u2", receiver)

		derr := rt.Dispatch(context.Background(), sender, DirectMessageFrame{ReceiverID: "u2", Content: "hi"})
		if derr == nil {
			t.Fatal("expected a persistence error")
		}
		if derr.Kind != KindPersistence {
			t.Errorf("expected persistence kind, got %s", derr.Kind)
		}
		if derr.Fatal() {
			t.Error("a persistence error must not close the session")
		}
		if receiver.deliveries() != 0 || sender.deliveries() != 0 {
			t.Error("an unpersisted message must never be delivered")
		}
	})
}

func TestGroupMessage(t *testing.T) {
	t.Run("FanOutIncludesSender", func(t *testing.T) {
		rt, st, registry := newTestRouter(t)
		st.addUser("u1", "Alice")
		st.addUser("u2", "Bob")
		st.addUser("u3", "Carol")
		st.addGroup("g1", "u1", "u2", "u3")

		sender := &fakeSender{id: "u1", name: "Alice"}
		bob := &fakeSender{id: "u2", name: "Bob"}
		registry.Register("u1", sender)
		registry.Register("u2", bob)
		// u3 is a member but offline.

		if derr := rt.Dispatch(context.Background(), sender, GroupMessageFrame{GroupID: "g1", Content: "hello all"}); derr != nil {
			t.Fatalf("unexpected error: %v", derr)
		}

		if sender.deliveries() != 1 {
			t.Errorf("sender is a member and must receive the fan-out, got %d", sender.deliveries())
		}
		env := bob.lastEnvelope(t)
		if env.Type != FrameGroupMessage || env.GroupID != "g1" || env.SenderName != "Alice" {
			t.Errorf("unexpected envelope: %+v", env)
		}
		if len(st.messages) != 1 || st.messages[0].GroupID != "g1" {
			t.Errorf("unexpected persisted message: %+v", st.messages)
		}
	})

	t.Run("NonMemberIsRejectedBeforePersist", func(t *testing.T) {
		rt, st, registry := newTestRouter(t)
		st.addUser("u1", "Alice")
		st.addUser("u2", "Bob")
		st.addGroup("g1", "u2")

		sender := &fakeSender{id: "u1", name: "Alice"}
		bob := &fakeSender{id: "u2", name: "Bob"}
		registry.Register("u2", bob)

		derr := rt.Dispatch(context.Background(), sender, GroupMessageFrame{GroupID: "g1", Content: "intrusion"})
		if derr == nil {
			t.Fatal("expected an authorization error")
		}
		if derr.Kind != KindAuthorization {
			t.Errorf("expected authorization kind, got %s", derr.Kind)
		}
		if derr.Message != "You are not a member of this group" {
			t.Errorf("unexpected message: %q", derr.Message)
		}
		if len(st.messages) != 0 {
			t.Error("a rejected message must not be persisted")
		}
		if bob.deliveries() != 0 {
			t.Error("group members must see zero writes from a rejected message")
		}
	})

	t.Run("UnknownGroup", func(t *testing.T) {
		rt, st, _ := newTestRouter(t)
		st.addUser("u1", "Alice")
		sender := &fakeSender{id: "u1", name: "Alice"}

		derr := rt.Dispatch(context.Background(), sender, GroupMessageFrame{GroupID: "nope", Content: "hi"})
		if derr == nil || derr.Kind != KindNotFound {
			t.Fatalf("expected not-found error, got %v", derr)
		}
		if derr.Message != "Group not found" {
			t.Errorf("unexpected message: %q", derr.Message)
		}
	})
}

func TestJoinGroup(t *testing.T) {
	t.Run("JoinerHearsOwnJoin", func(t *testing.T) {
		rt, st, registry := newTestRouter(t)
		st.addUser("u1", "Alice")
		st.addUser("u2", "Bob")
		st.addGroup("g1", "u2")

		sender := &fakeSender{id: "u1", name: "Alice"}
		bob := &fakeSender{id: "u2", name: "Bob"}
		registry.Register("u1", sender)
		registry.Register("u2", bob)

		if derr := rt.Dispatch(context.Background(), sender, JoinGroupFrame{GroupID: "g1"}); derr != nil {
			t.Fatalf("unexpected error: %v", derr)
		}

		if !st.groups["g1"].HasMember("u1") {
			t.Error("membership change was not persisted")
		}
		if len(sender.joined) != 1 || sender.joined[0] != "g1" {
			t.Errorf("session cache not updated: %v", sender.joined)
		}
		if sender.deliveries() != 1 || bob.deliveries() != 1 {
			t.Errorf("join event should reach joiner and existing members, got %d/%d",
				sender.deliveries(), bob.deliveries())
		}

		var event MembershipEvent
		bob.mu.Lock()
		payload := bob.delivered[0]
		bob.mu.Unlock()
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("failed to decode membership event: %v", err)
		}
		if event.Type != FrameGroupJoin || event.UserID != "u1" || event.UserName != "Alice" {
			t.Errorf("unexpected membership event: %+v", event)
		}
	})

	t.Run("DuplicateJoin", func(t *testing.T) {
		rt, st, _ := newTestRouter(t)
		st.addUser("u1", "Alice")
		st.addGroup("g1", "u1")
		sender := &fakeSender{id: "u1", name: "Alice"}

		derr := rt.Dispatch(context.Background(), sender, JoinGroupFrame{GroupID: "g1"})
		if derr == nil || derr.Kind != KindValidation {
			t.Fatalf("expected validation error, got %v", derr)
		}
		if derr.Message != "You are already a member of this group" {
			t.Errorf("unexpected message: %q", derr.Message)
		}
		if len(st.groups["g1"].Members) != 1 {
			t.Error("membership must be unchanged after a duplicate join")
		}
	})
}

func TestLeaveGroup(t *testing.T) {
	t.Run("DeparterStillHearsLeave", func(t *testing.T) {
		rt, st, registry := newTestRouter(t)
		st.addUser("u1", "Alice")
		st.addUser("u2", "Bob")
		st.addGroup("g1", "u1", "u2")

		sender := &fakeSender{id: "u1", name: "Alice"}
		bob := &fakeSender{id: "u2", name: "Bob"}
		registry.Register("u1", sender)
		registry.Register("u2", bob)

		if derr := rt.Dispatch(context.Background(), sender, LeaveGroupFrame{GroupID: "g1"}); derr != nil {
			t.Fatalf("unexpected error: %v", derr)
		}

		if st.groups["g1"].HasMember("u1") {
			t.Error("membership change was not persisted")
		}
		if len(sender.left) != 1 || sender.left[0] != "g1" {
			t.Errorf("session cache not updated: %v", sender.left)
		}
		// The departer is no longer in the member list but still gets the echo.
		if sender.deliveries() != 1 {
			t.Errorf("departer must receive the leave event, got %d deliveries", sender.deliveries())
		}
		if bob.deliveries() != 1 {
			t.Errorf("remaining member must be notified, got %d deliveries", bob.deliveries())
		}
	})

	t.Run("LeaveThenSendIsRejected", func(t *testing.T) {
		rt, st, registry := newTestRouter(t)
		st.addUser("u1", "Alice")
		st.addUser("u2", "Bob")
		st.addGroup("g1", "u1", "u2")

		sender := &fakeSender{id: "u1", name: "Alice"}
		registry.Register("u1", sender)

		if derr := rt.Dispatch(context.Background(), sender, LeaveGroupFrame{GroupID: "g1"}); derr != nil {
			t.Fatalf("unexpected error: %v", derr)
		}

		// The session cache still remembering the group is irrelevant; the
		// store is authoritative.
		derr := rt.Dispatch(context.Background(), sender, GroupMessageFrame{GroupID: "g1", Content: "still here?"})
		if derr == nil || derr.Kind != KindAuthorization {
			t.Fatalf("expected authorization error, got %v", derr)
		}
		if len(st.messages) != 0 {
			t.Error("no message may be persisted after leaving")
		}
	})

	t.Run("NonMemberLeave", func(t *testing.T) {
		rt, st, _ := newTestRouter(t)
		st.addUser("u1", "Alice")
		st.addGroup("g1", "u2")
		sender := &fakeSender{id: "u1", name: "Alice"}

		derr := rt.Dispatch(context.Background(), sender, LeaveGroupFrame{GroupID: "g1"})
		if derr == nil || derr.Kind != KindAuthorization {
			t.Fatalf("expected authorization error, got %v", derr)
		}
	})
}
