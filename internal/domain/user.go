package domain

import "time"

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Address      string    `json:"address,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Name: u.Name, Email: u.Email}
}

// Identity is the authenticated caller of a single request. The zero value is
// an anonymous caller.
type Identity struct {
	UserID int64
	Name   string
	Email  string
}

func (i Identity) Anonymous() bool {
	return i.UserID == 0
}
