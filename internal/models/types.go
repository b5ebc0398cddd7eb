package models

import "time"

// OperationType is the generic verb every domain action reduces to.
type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationGet    OperationType = "get"
	OperationList   OperationType = "list"
	OperationPatch  OperationType = "patch"
	OperationDelete OperationType = "delete"
)

// Valid reports whether the verb is one of the five known operations.
func (o OperationType) Valid() bool {
	switch o {
	case OperationCreate, OperationGet, OperationList, OperationPatch, OperationDelete:
		return true
	}
	return false
}

// Status constants
const (
	StatusSuccess             = "success"
	StatusError               = "error"
	StatusPendingConfirmation = "pending_confirmation"
)

// Error codes
const (
	ErrorInvalidRequest    = "INVALID_REQUEST"
	ErrorValidation        = "VALIDATION_ERROR"
	ErrorSessionNotFound   = "SESSION_NOT_FOUND"
	ErrorSessionForbidden  = "SESSION_FORBIDDEN"
	ErrorSessionInactive   = "SESSION_INACTIVE"
	ErrorUnauthenticated   = "UNAUTHENTICATED"
	ErrorRateLimited       = "RATE_LIMITED"
	ErrorInternal          = "INTERNAL_ERROR"
	ErrorConfirmationToken = "CONFIRMATION_INVALID"
)

// MaxRetryCount bounds ExecutionResult.RetryCount.
const MaxRetryCount = 3

// OperationRequest is a validated, executable command derived from an Intent.
type OperationRequest struct {
	OperationID          string        `json:"operation_id"`
	SessionID            string        `json:"session_id"`
	UserID               string        `json:"user_id"`
	OperationType        OperationType `json:"operation_type"`
	TargetResource       ResourceType  `json:"target_resource"`
	ResourceName         string        `json:"resource_name,omitempty"`
	Parameters           Parameters    `json:"parameters"`
	RequiresConfirmation bool          `json:"requires_confirmation"`
	ConfirmationToken    string        `json:"confirmation_token,omitempty"`

	// Command and client metadata recorded in the audit trail.
	UserCommand string `json:"user_command,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
}

// ExecutionResult is the outcome of executing one OperationRequest.
type ExecutionResult struct {
	OperationID  string         `json:"operation_id"`
	Status       string         `json:"status"`
	ResourceName string         `json:"resource_name,omitempty"`
	ResourceType ResourceType   `json:"resource_type"`
	ResultData   map[string]any `json:"result_data,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	RetryCount   int            `json:"retry_count"`
	Duration     time.Duration  `json:"duration_ns"`
}

// ConversationMessage is one prior turn of a conversation.
type ConversationMessage struct {
	Role    string `json:"role"` // "user", "assistant" or "system"
	Content string `json:"content"`
}

// QueryRequest is a natural-language query from a client.
type QueryRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query"`

	// UserID is only honoured on trusted transports (NATS); HTTP derives it
	// from the bearer token.
	UserID string `json:"user_id,omitempty"`
}

// PendingOperation describes what the client must send back to confirm.
type PendingOperation struct {
	OperationType  OperationType `json:"operation_type"`
	TargetResource ResourceType  `json:"target_resource"`
	ResourceName   string        `json:"resource_name,omitempty"`
	Parameters     Parameters    `json:"parameters"`
}

// QueryResponse answers a QueryRequest.
type QueryResponse struct {
	SessionID         string            `json:"session_id"`
	Status            string            `json:"status"`
	Message           string            `json:"message"`
	Intent            *Intent           `json:"intent,omitempty"`
	Result            *ExecutionResult  `json:"result,omitempty"`
	ConfirmationToken string            `json:"confirmation_token,omitempty"`
	Pending           *PendingOperation `json:"pending_operation,omitempty"`
	ErrorCode         string            `json:"error_code,omitempty"`
	ErrorMessage      string            `json:"error_message,omitempty"`
}

// ConfirmRequest continues an operation that returned pending_confirmation.
type ConfirmRequest struct {
	SessionID         string        `json:"session_id"`
	ConfirmationToken string        `json:"confirmation_token"`
	OperationType     OperationType `json:"operation_type"`
	ResourceName      string        `json:"resource_name,omitempty"`
	Parameters        Parameters    `json:"parameters"`
	UserID            string        `json:"user_id,omitempty"`
}

// ConfirmResponse answers a ConfirmRequest.
type ConfirmResponse struct {
	SessionID    string           `json:"session_id"`
	Status       string           `json:"status"`
	Message      string           `json:"message"`
	Result       *ExecutionResult `json:"result,omitempty"`
	ErrorCode    string           `json:"error_code,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
}
