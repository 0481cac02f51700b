package users

import "time"

// User is one WhatsApp account the bot serves. IDs are derived from the
// phone number ("usr_" + its last six digits) so the same person always
// maps to the same record.
type User struct {
	ID         string    `json:"id"`
	Phone      string    `json:"phone"`
	Name       string    `json:"name,omitempty"`
	Authorized bool      `json:"authorized"`
	CreatedAt  time.Time `json:"created_at"`

	// Optional user-linked Green API sending channel, token stored
	// encrypted. Empty when the user rides the shared bot instance.
	GreenInstanceID   string `json:"-"`
	GreenTokenEncoded string `json:"-"`
}
