package model

// ErrorCode classifies a RemoteClient grant failure. The engine never
// inspects error strings to decide behavior, only this enum.
type ErrorCode string

const (
	ErrorNone             ErrorCode = ""
	ErrorPermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrorRateLimited      ErrorCode = "RATE_LIMITED"
	ErrorNotFound         ErrorCode = "NOT_FOUND"
	ErrorEmailInvalid     ErrorCode = "EMAIL_INVALID"
	ErrorUnknown          ErrorCode = "UNKNOWN"
)
