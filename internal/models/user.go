package models

import "time"

// Role separates regular accounts from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID                string    `bson:"_id,omitempty" json:"id"`
	Name              string    `bson:"name" json:"name"`
	FirstName         string    `bson:"first_name" json:"firstName"`
	Email             string    `bson:"email" json:"email"`
	Country           string    `bson:"country" json:"country"`
	Password          string    `bson:"password" json:"-"`
	Role              Role      `bson:"role" json:"role"`
	IsVerified        bool      `bson:"is_verified" json:"isVerified"`
	VerificationToken string    `bson:"verification_token,omitempty" json:"-"`
	CreatedAt         time.Time `bson:"created_at" json:"createdAt"`
}
