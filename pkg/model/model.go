// Package model defines the persistent data types for CodeHelper.
package model

import "time"

// User is a registered account. PasswordHash is never serialized.
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Item is an entry of the demo items resource.
type Item struct {
	ID        int64  `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Completed bool   `json:"completed" db:"completed"`
}

// ItemPatch carries the fields of a partial item update. Nil fields are left
// unchanged.
type ItemPatch struct {
	Name      *string `json:"name"`
	Completed *bool   `json:"completed"`
}
