package models

// ErrorType classifies API errors so clients can branch without parsing messages.
type ErrorType string

const (
	ValidationErrorType ErrorType = "VALIDATION_ERROR"
	NotFoundErrorType   ErrorType = "NOT_FOUND"
	ConflictErrorType   ErrorType = "CONFLICT"
	DatabaseErrorType   ErrorType = "DATABASE_ERROR"
	GeneralErrorType    ErrorType = "GENERAL_ERROR"
)

// APIResponse is the envelope every HTTP handler responds with.
type APIResponse struct {
	Status    string    `json:"status"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	ErrorType ErrorType `json:"error_type,omitempty"`
}
