/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Conversation and Message Business Logic Errors
const (
	// ErrConversationNotFound indicates that the target conversation does not exist.
	ErrConversationNotFound = 2001

	// ErrNotParticipant indicates that the authenticated user is not a member of the conversation.
	ErrNotParticipant = 2002

	// ErrEmptyMessage indicates that a message was submitted with no content.
	ErrEmptyMessage = 2003

	// ErrMessageContentTooLong indicates that the message content exceeded the size limit.
	ErrMessageContentTooLong = 2004
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrInvalidUsername indicates that the supplied username does not meet format requirements.
	ErrInvalidUsername = 3001

	// ErrInvalidPassword indicates that the supplied password does not meet format requirements.
	ErrInvalidPassword = 3002

	// ErrUserAlreadyExists indicates that the username is already registered.
	ErrUserAlreadyExists = 3003

	// ErrInvalidCredentials indicates that the username/password combination is incorrect.
	ErrInvalidCredentials = 3004

	// ErrUserNotFound indicates that the requested user account does not exist.
	ErrUserNotFound = 3005

	// ErrUnauthorized indicates that the request lacks a valid identity token.
	ErrUnauthorized = 3006

	// ErrInvalidRefreshToken indicates that the refresh token is missing, expired, or malformed.
	ErrInvalidRefreshToken = 3007
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown is the catch-all code for unclassified internal errors.
	ErrUnknown = 5000

	// ErrStorageFailure indicates a transient database or broker I/O failure.
	ErrStorageFailure = 5001
)
