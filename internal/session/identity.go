// Package session owns the user's asserted identity and the on-disk
// conversation store. The identity is captured by a simple form — there is no
// verification; its presence alone gates chat functionality.
package session

import (
	"strings"
	"time"
)

// Identity is the self-asserted user record. Presence of a non-zero Email is
// what "identified" means everywhere else in the program.
type Identity struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	LoggedInAt  time.Time `json:"loggedInAt"`
}

// Key derives the stable history scope for this identity.
func (id Identity) Key() string {
	return strings.ToLower(strings.TrimSpace(id.Email))
}

// Zero reports whether the record denotes "not identified".
func (id Identity) Zero() bool {
	return id.Key() == ""
}
