package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chatrelay/internal/models"
	"chatrelay/internal/store"
)

// Store is the slice of persistence the relay consumes. The membership
// queries are authoritative: the per-session group cache is never trusted
// for a routing decision because membership can change through the REST API
// while a socket stays open.
type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	IsUserInGroup(ctx context.Context, userID, groupID string) (bool, error)
	GetGroupMembers(ctx context.Context, groupID string) ([]models.User, error)
	AddUserToGroup(ctx context.Context, groupID, userID string) error
	RemoveUserFromGroup(ctx context.Context, userID, groupID string) error
	CreateMessage(ctx context.Context, senderID string, target models.Target, content string) (*models.Message, error)
}

// Sender is the router's view of the connection a frame arrived on.
type Sender interface {
	UserID() string
	UserName() string
	Deliver(payload []byte) bool
	JoinedGroup(groupID string)
	LeftGroup(groupID string)
}

// EventSink receives persisted messages for downstream consumers. Delivery
// is best-effort and must never affect routing.
type EventSink interface {
	MessageCreated(ctx context.Context, msg *models.Message)
}

// Router validates and dispatches inbound frames. Persistence always
// precedes fan-out: a message that failed to persist is never delivered,
// and a persisted message is delivered to however many targets are
// reachable.
type Router struct {
	store    Store
	registry *Registry
	events   EventSink
	logger   *slog.Logger
	now      func() time.Time
}

func NewRouter(st Store, registry *Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		store:    st,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// SetEventSink attaches an optional sink for persisted messages.
func (rt *Router) SetEventSink(sink EventSink) {
	rt.events = sink
}

// Dispatch routes one parsed frame on behalf of sender. A non-nil result is
// reported to the client as an error frame; none of these errors close the
// session.
func (rt *Router) Dispatch(ctx context.Context, sender Sender, frame Inbound) *Error {
	switch f := frame.(type) {
	case DirectMessageFrame:
		return rt.handleDirectMessage(ctx, sender, f)
	case GroupMessageFrame:
		return rt.handleGroupMessage(ctx, sender, f)
	case JoinGroupFrame:
		return rt.handleJoinGroup(ctx, sender, f)
	case LeaveGroupFrame:
		return rt.handleLeaveGroup(ctx, sender, f)
	default:
		return validationError("Unknown message type")
	}
}

func (rt *Router) handleDirectMessage(ctx context.Context, sender Sender, f DirectMessageFrame) *Error {
	// Persist unconditionally, even when the receiver is offline: durability
	// precedes delivery, the receiver can fetch history later.
	msg, err := rt.store.CreateMessage(ctx, sender.UserID(), models.DirectTarget(f.ReceiverID), f.Content)
	if err != nil {
		return persistenceError("Error sending direct message", err)
	}

	payload, perr := marshalFrame(MessageEnvelope{
		Type:       FrameDirectMessage,
		MessageID:  msg.ID,
		SenderID:   sender.UserID(),
		SenderName: sender.UserName(),
		Content:    f.Content,
		Timestamp:  msg.CreatedAt,
	})
	if perr != nil {
		return perr
	}

	if receiver, ok := rt.registry.Lookup(f.ReceiverID); ok {
		receiver.Deliver(payload)
	}
	// Echo to the sender so its UI reflects the persisted copy instead of an
	// optimistic local one.
	sender.Deliver(payload)

	rt.publish(msg)
	rt.logger.Debug("direct message routed", "senderId", sender.UserID(), "receiverId", f.ReceiverID, "messageId", msg.ID)
	return nil
}

func (rt *Router) handleGroupMessage(ctx context.Context, sender Sender, f GroupMessageFrame) *Error {
	if _, err := rt.store.GetGroup(ctx, f.GroupID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("Group not found")
		}
		return persistenceError("Error sending group message", err)
	}

	// Fresh membership check, never the session cache.
	isMember, err := rt.store.IsUserInGroup(ctx, sender.UserID(), f.GroupID)
	if err != nil {
		return persistenceError("Error sending group message", err)
	}
	if !isMember {
		return authorizationError("You are not a member of this group")
	}

	msg, err := rt.store.CreateMessage(ctx, sender.UserID(), models.GroupTarget(f.GroupID), f.Content)
	if err != nil {
		return persistenceError("Error sending group message", err)
	}

	payload, perr := marshalFrame(MessageEnvelope{
		Type:       FrameGroupMessage,
		MessageID:  msg.ID,
		GroupID:    f.GroupID,
		SenderID:   sender.UserID(),
		SenderName: sender.UserName(),
		Content:    f.Content,
		Timestamp:  msg.CreatedAt,
	})
	if perr != nil {
		return perr
	}

	members, err := rt.store.GetGroupMembers(ctx, f.GroupID)
	if err != nil {
		// The message is durable but nobody can be notified live.
		rt.logger.Error("group fan-out aborted", "groupId", f.GroupID, "messageId", msg.ID, "error", err)
		return persistenceError("Error sending group message", err)
	}

	// The sender is a member and receives the message like everyone else.
	delivered := rt.registry.Broadcast(memberIDs(members), payload)
	rt.publish(msg)
	rt.logger.Debug("group message routed",
		"senderId", sender.UserID(), "groupId", f.GroupID, "messageId", msg.ID,
		"members", len(members), "delivered", delivered)
	return nil
}

func (rt *Router) handleJoinGroup(ctx context.Context, sender Sender, f JoinGroupFrame) *Error {
	if _, err := rt.store.GetGroup(ctx, f.GroupID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("Group not found")
		}
		return persistenceError("Error joining group", err)
	}

	isMember, err := rt.store.IsUserInGroup(ctx, sender.UserID(), f.GroupID)
	if err != nil {
		return persistenceError("Error joining group", err)
	}
	if isMember {
		return validationError("You are already a member of this group")
	}

	if err := rt.store.AddUserToGroup(ctx, f.GroupID, sender.UserID()); err != nil {
		return persistenceError("Error joining group", err)
	}
	sender.JoinedGroup(f.GroupID)

	payload, perr := marshalFrame(MembershipEvent{
		Type:      FrameGroupJoin,
		GroupID:   f.GroupID,
		UserID:    sender.UserID(),
		UserName:  sender.UserName(),
		Timestamp: rt.now().UTC(),
	})
	if perr != nil {
		return perr
	}

	// Post-addition member list, so the joiner hears its own join too.
	members, err := rt.store.GetGroupMembers(ctx, f.GroupID)
	if err != nil {
		rt.logger.Error("join notification aborted", "groupId", f.GroupID, "userId", sender.UserID(), "error", err)
		return persistenceError("Error joining group", err)
	}
	rt.registry.Broadcast(memberIDs(members), payload)

	rt.logger.Debug("user joined group", "userId", sender.UserID(), "groupId", f.GroupID)
	return nil
}

func (rt *Router) handleLeaveGroup(ctx context.Context, sender Sender, f LeaveGroupFrame) *Error {
	if _, err := rt.store.GetGroup(ctx, f.GroupID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("Group not found")
		}
		return persistenceError("Error leaving group", err)
	}

	isMember, err := rt.store.IsUserInGroup(ctx, sender.UserID(), f.GroupID)
	if err != nil {
		return persistenceError("Error leaving group", err)
	}
	if !isMember {
		return authorizationError("You are not a member of this group")
	}

	if err := rt.store.RemoveUserFromGroup(ctx, sender.UserID(), f.GroupID); err != nil {
		return persistenceError("Error leaving group", err)
	}
	sender.LeftGroup(f.GroupID)

	payload, perr := marshalFrame(MembershipEvent{
		Type:      FrameGroupLeave,
		GroupID:   f.GroupID,
		UserID:    sender.UserID(),
		UserName:  sender.UserName(),
		Timestamp: rt.now().UTC(),
	})
	if perr != nil {
		return perr
	}

	members, err := rt.store.GetGroupMembers(ctx, f.GroupID)
	if err != nil {
		rt.logger.Error("leave notification aborted", "groupId", f.GroupID, "userId", sender.UserID(), "error", err)
		return persistenceError("Error leaving group", err)
	}
	rt.registry.Broadcast(memberIDs(members), payload)
	// The departing user is no longer in the member list; echo the event so
	// a socket-initiated leave is never silently acknowledged.
	sender.Deliver(payload)

	rt.logger.Debug("user left group", "userId", sender.UserID(), "groupId", f.GroupID)
	return nil
}

func (rt *Router) publish(msg *models.Message) {
	if rt.events == nil {
		return
	}
	// Detached from the frame's lifecycle: closing the socket must not
	// cancel event publication of an already-durable message.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rt.events.MessageCreated(ctx, msg)
	}()
}

func memberIDs(members []models.User) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids
}
