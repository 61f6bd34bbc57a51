package models

import "time"

// AuditLog records security-relevant actions for the admin log view.
type AuditLog struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Level     string    `bson:"level" json:"level"`
	Action    string    `bson:"action" json:"action"`
	ActorID   string    `bson:"actor_id,omitempty" json:"actorId,omitempty"`
	Detail    string    `bson:"detail,omitempty" json:"detail,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}
