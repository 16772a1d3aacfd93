package models

import "time"

// User is the local profile of an identity provider account.
type User struct {
	ID         int64     `json:"id"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Nickname   string    `json:"nickname"`
	Email      string    `json:"email"`
	IdpSubject string    `json:"idAuth"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// FullName joins first and last name for display and audit logs.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
