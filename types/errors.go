package types

// Error codes carried in <action>_error payloads.
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeRoomNotFound    = "ROOM_NOT_FOUND"
	ErrCodeNotAMember      = "NOT_A_MEMBER"
	ErrCodeNoActiveSession = "NO_ACTIVE_SESSION"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	ErrCodeCooldown        = "MESSAGE_COOLDOWN"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// Error is the structured error reported back to the acting connection.
// It never propagates to other room members.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func ValidationError(message string) *Error {
	return NewError(ErrCodeValidation, message)
}

func ForbiddenError(message string) *Error {
	return NewError(ErrCodeForbidden, message)
}

func NotFoundError(message string) *Error {
	return NewError(ErrCodeNotFound, message)
}

func ConflictError(message string) *Error {
	return NewError(ErrCodeConflict, message)
}

// AsError coerces any error into a structured Error. Unknown errors are
// reported as INTERNAL_ERROR without leaking the underlying message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return NewError(ErrCodeInternal, "internal server error")
}
