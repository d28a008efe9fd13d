package models

import (
	"time"
)

// AccountStatus is the lifecycle state of a user account.
type AccountStatus string

const (
	StatusPendingVerification AccountStatus = "PENDING_VERIFICATION"
	StatusActive              AccountStatus = "ACTIVE"
	StatusSuspended           AccountStatus = "SUSPENDED"
)

// User defines the user model based on the 'users' table. Email is stored
// lower-cased; lookups always canonicalize first.
type User struct {
	ID              int64         `json:"id" db:"id" example:"1"`
	Email           string        `json:"email" db:"email" example:"a@kln.ac.lk"`
	PasswordHash    string        `json:"-" db:"password_hash"`
	FirstName       string        `json:"firstName" db:"first_name" example:"Nimal"`
	LastName        string        `json:"lastName" db:"last_name" example:"Perera"`
	Phone           string        `json:"phone" db:"phone" example:"+94711234567"`
	Organization    string        `json:"organization" db:"organization" example:"University of Kelaniya"`
	Country         string        `json:"country" db:"country" example:"Sri Lanka"`
	CountryCode     string        `json:"countryCode" db:"country_code" example:"LK"`
	StudentID       *string       `json:"studentId,omitempty" db:"student_id"`
	NIC             *string       `json:"nic,omitempty" db:"nic"`
	IEEEID          *string       `json:"ieeeId,omitempty" db:"ieee_id"`
	Address         *string       `json:"address,omitempty" db:"address"`
	AccountStatus   AccountStatus `json:"accountStatus" db:"account_status" example:"ACTIVE"`
	EmailVerifiedAt *time.Time    `json:"emailVerifiedAt,omitempty" db:"email_verified_at"`
	CreatedAt       time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time     `json:"updatedAt" db:"updated_at"`
	Roles           []string      `json:"roles"` // Relation, no db tag
}

// HasRole reports whether the user carries the given role name.
func (u *User) HasRole(roleName string) bool {
	for _, r := range u.Roles {
		if r == roleName {
			return true
		}
	}
	return false
}
