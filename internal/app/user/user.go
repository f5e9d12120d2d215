/*
Package user contains the core data structure for user identity.

It defines the basic representation of a chat participant (the User struct),
used for passing identity information both internally and to clients.
*/
package user

// User represents the identity of a chat participant as seen by the realtime core.
// The core references identities but never mutates them.
type User struct {
	// ID is the database identifier of the user.
	ID int64 `json:"id"`

	// Username is the unique login name of the user.
	Username string `json:"username"`

	// DisplayName is the human-facing name shown in conversations.
	DisplayName string `json:"display_name"`
}
