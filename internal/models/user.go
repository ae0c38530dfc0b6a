package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Username       string
	HashedPassword string
	Role           string
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Authenticated caller of a service operation
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
