// Package model defines the data structures used throughout the application.
// Relationships are expressed as foreign-key ids; repositories resolve them
// with explicit queries.
package model

import "time"

// User is a registered account. Username and Email are each globally unique.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}
