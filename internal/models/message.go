package models

import (
	"errors"
	"time"
)

// Target is the destination of a message: either a single user or a group,
// never both and never neither. The zero value is invalid.
type Target struct {
	receiverID string
	groupID    string
}

// DirectTarget addresses a message to a single user.
func DirectTarget(userID string) Target {
	return Target{receiverID: userID}
}

// GroupTarget addresses a message to the members of a group.
func GroupTarget(groupID string) Target {
	return Target{groupID: groupID}
}

func (t Target) Receiver() (string, bool) {
	return t.receiverID, t.receiverID != ""
}

func (t Target) Group() (string, bool) {
	return t.groupID, t.groupID != ""
}

// Validate enforces the exactly-one-destination invariant.
func (t Target) Validate() error {
	if t.receiverID == "" && t.groupID == "" {
		return errors.New("message target is empty")
	}
	if t.receiverID != "" && t.groupID != "" {
		return errors.New("message target has both a receiver and a group")
	}
	return nil
}

// Message is immutable once persisted. Exactly one of ReceiverID/GroupID is
// set; use Target to construct and inspect the destination.
type Message struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	SenderID   string    `bson:"sender_id" json:"senderId"`
	ReceiverID string    `bson:"receiver_id,omitempty" json:"receiverId,omitempty"`
	GroupID    string    `bson:"group_id,omitempty" json:"groupId,omitempty"`
	Content    string    `bson:"content" json:"content"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

func (m *Message) Target() Target {
	return Target{receiverID: m.ReceiverID, groupID: m.GroupID}
}
