package models

import "time"

// Group embeds its member ids directly in the document, so membership checks
// are a single lookup.
type Group struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Members     []string  `bson:"members" json:"members"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
}

func (g *Group) HasMember(userID string) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}
