// Package handlers implements the conversational flows shared by the HTTP
// and NATS transports.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/avvvet/rhoai-intent/internal/audit"
	"github.com/avvvet/rhoai-intent/internal/confirm"
	"github.com/avvvet/rhoai-intent/internal/intent"
	"github.com/avvvet/rhoai-intent/internal/memory"
	"github.com/avvvet/rhoai-intent/internal/models"
	"github.com/avvvet/rhoai-intent/internal/operations"
	"github.com/avvvet/rhoai-intent/internal/prompts"
)

// ErrNoUser is returned when a flow is invoked without a caller identity.
var ErrNoUser = errors.New("user id is required")

// Executor runs operation requests. *operations.Router implements it.
type Executor interface {
	RouteAndExecute(ctx context.Context, req *models.OperationRequest) *models.ExecutionResult
}

// Client is caller metadata recorded in the audit trail.
type Client struct {
	IPAddress string
	UserAgent string
}

type Deps struct {
	Sessions *memory.Manager
	Parser   *intent.Parser
	Executor Executor
	Confirm  *confirm.Issuer
	Audit    audit.Sink
	Registry prometheus.Registerer
	Logger   *zap.Logger
}

// Agent turns queries into operations and keeps the conversation.
type Agent struct {
	sessions *memory.Manager
	parser   *intent.Parser
	executor Executor
	confirm  *confirm.Issuer
	audit    audit.Sink
	intents  *prometheus.CounterVec
	logger   *zap.Logger
}

func NewAgent(d Deps) *Agent {
	return &Agent{
		sessions: d.Sessions,
		parser:   d.Parser,
		executor: d.Executor,
		confirm:  d.Confirm,
		audit:    d.Audit,
		intents: promauto.With(d.Registry).NewCounterVec(prometheus.CounterOpts{
			Name: "rhoai_intents_total",
			Help: "Parsed intents by action.",
		}, []string{"action"}),
		logger: d.Logger.Named("agent"),
	}
}

// active loads a session the user may write to.
func (a *Agent) active(ctx context.Context, sessionID, userID string) (*memory.Session, error) {
	s, err := a.sessions.GetOrCreate(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if s.Status != memory.StatusActive {
		return nil, memory.ErrSessionInactive
	}
	return s, nil
}

// HandleQuery parses one utterance, then either executes it or returns a
// confirmation token for it.
func (a *Agent) HandleQuery(ctx context.Context, userID string, req *models.QueryRequest, client Client) (*models.QueryResponse, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	session, err := a.active(ctx, req.SessionID, userID)
	if err != nil {
		return nil, err
	}
	history, err := a.sessions.ContextWindow(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	in, err := a.parser.ParseIntent(req.Query, history)
	if err != nil {
		return nil, err
	}
	if err := intent.ValidateIntent(in); err != nil {
		return nil, err
	}
	a.intents.WithLabelValues(string(in.Action)).Inc()
	a.logger.Info("intent parsed",
		zap.String("session_id", session.ID),
		zap.String("action", string(in.Action)),
		zap.Float64("confidence", in.Confidence))

	if _, err := a.sessions.AddUserMessage(ctx, session.ID, req.Query); err != nil {
		return nil, err
	}

	op, err := operations.BuildRequest(in, operations.Request{
		SessionID:   session.ID,
		UserID:      userID,
		UserCommand: req.Query,
		IPAddress:   client.IPAddress,
		UserAgent:   client.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	if op.RequiresConfirmation {
		return a.pending(ctx, in, op)
	}

	result := a.executor.RouteAndExecute(ctx, op)
	reply := prompts.Reply(in.Action, result)
	if _, err := a.sessions.AddAssistantMessage(ctx, session.ID, reply); err != nil {
		a.logger.Warn("failed to save reply", zap.String("session_id", session.ID), zap.Error(err))
	}
	return &models.QueryResponse{
		SessionID: session.ID,
		Status:    result.Status,
		Message:   reply,
		Intent:    in,
		Result:    result,
	}, nil
}

func (a *Agent) pending(ctx context.Context, in *models.Intent, op *models.OperationRequest) (*models.QueryResponse, error) {
	token, err := a.confirm.Issue(confirm.Operation{
		SessionID:      op.SessionID,
		UserID:         op.UserID,
		OperationType:  op.OperationType,
		TargetResource: op.TargetResource,
		ResourceName:   op.ResourceName,
		Parameters:     op.Parameters,
	})
	if err != nil {
		return nil, err
	}
	if _, err := a.sessions.AddSystemMessage(ctx, op.SessionID, prompts.ConfirmationNote); err != nil {
		return nil, err
	}
	a.logger.Info("operation awaiting confirmation",
		zap.String("session_id", op.SessionID),
		zap.String("action", string(in.Action)),
		zap.String("resource", op.ResourceName))

	return &models.QueryResponse{
		SessionID:         op.SessionID,
		Status:            models.StatusPendingConfirmation,
		Message:           prompts.Pending(in.Action),
		Intent:            in,
		ConfirmationToken: token,
		Pending: &models.PendingOperation{
			OperationType:  op.OperationType,
			TargetResource: op.TargetResource,
			ResourceName:   op.ResourceName,
			Parameters:     op.Parameters,
		},
	}, nil
}

// HandleConfirm executes an operation previously answered with
// pending_confirmation.
func (a *Agent) HandleConfirm(ctx context.Context, userID string, req *models.ConfirmRequest, client Client) (*models.ConfirmResponse, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	if req.SessionID == "" {
		return nil, models.NewValidationError("session_id", "session_id is required")
	}
	if strings.TrimSpace(req.ConfirmationToken) == "" {
		return nil, models.NewValidationError("confirmation_token", "confirmation_token is required")
	}
	if _, err := a.active(ctx, req.SessionID, userID); err != nil {
		return nil, err
	}

	shape := confirm.Operation{
		SessionID:     req.SessionID,
		UserID:        userID,
		OperationType: req.OperationType,
		ResourceName:  req.ResourceName,
		Parameters:    req.Parameters,
	}
	if err := a.confirm.Verify(req.ConfirmationToken, &shape); err != nil {
		return a.rejected(ctx, req, shape, client, err), nil
	}

	op := &models.OperationRequest{
		OperationID:          uuid.NewString(),
		SessionID:            req.SessionID,
		UserID:               userID,
		OperationType:        shape.OperationType,
		TargetResource:       shape.TargetResource,
		ResourceName:         shape.ResourceName,
		Parameters:           shape.Parameters,
		RequiresConfirmation: true,
		ConfirmationToken:    req.ConfirmationToken,
		IPAddress:            client.IPAddress,
		UserAgent:            client.UserAgent,
	}
	result := a.executor.RouteAndExecute(ctx, op)

	reply := prompts.Failure(result.ErrorMessage)
	if result.Status == models.StatusSuccess {
		reply = prompts.Confirmed(op.OperationType, op.ResourceName)
	}
	if _, err := a.sessions.AddAssistantMessage(ctx, req.SessionID, reply); err != nil {
		a.logger.Warn("failed to save reply", zap.String("session_id", req.SessionID), zap.Error(err))
	}
	return &models.ConfirmResponse{
		SessionID: req.SessionID,
		Status:    result.Status,
		Message:   reply,
		Result:    result,
	}, nil
}

// rejected audits a confirmation that failed verification. Nothing is sent
// to the cluster.
func (a *Agent) rejected(ctx context.Context, req *models.ConfirmRequest, shape confirm.Operation, client Client, cause error) *models.ConfirmResponse {
	a.logger.Warn("confirmation rejected", zap.String("session_id", req.SessionID), zap.Error(cause))

	operation := string(req.OperationType)
	if shape.TargetResource != "" {
		operation += "_" + string(shape.TargetResource)
	}
	entry := &audit.Entry{
		UserID:      shape.UserID,
		SessionID:   req.SessionID,
		UserCommand: strings.TrimSpace(fmt.Sprintf("confirm %s %s", req.OperationType, req.ResourceName)),
		ParsedIntent: map[string]any{
			"operation_type": string(req.OperationType),
			"resource_name":  req.ResourceName,
		},
		Operation: operation,
		Result:    map[string]any{"status": models.StatusError},
		Error:     confirm.ErrInvalid.Error(),
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	}
	if err := a.audit.Record(ctx, entry); err != nil {
		a.logger.Error("failed to write audit entry", zap.Error(err))
	}

	msg := confirm.ErrInvalid.Error()
	return &models.ConfirmResponse{
		SessionID:    req.SessionID,
		Status:       models.StatusError,
		Message:      prompts.Failure(msg),
		ErrorCode:    models.ErrorConfirmationToken,
		ErrorMessage: msg,
	}
}

// SessionDetail is a session with its full message history.
type SessionDetail struct {
	memory.Session
	Messages []memory.Message `json:"messages"`
}

func (a *Agent) CreateSession(ctx context.Context, userID string) (*memory.Session, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	return a.sessions.GetOrCreate(ctx, "", userID)
}

func (a *Agent) ListSessions(ctx context.Context, userID string, opts memory.ListOptions) ([]memory.Session, error) {
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, models.NewValidationError("status", "unknown session status %q", opts.Status)
	}
	return a.sessions.List(ctx, userID, opts)
}

func (a *Agent) GetSession(ctx context.Context, sessionID, userID string) (*SessionDetail, error) {
	s, err := a.sessions.Session(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := a.sessions.History(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	return &SessionDetail{Session: *s, Messages: msgs}, nil
}

func (a *Agent) History(ctx context.Context, sessionID, userID string) ([]memory.Message, error) {
	return a.sessions.History(ctx, sessionID, userID)
}

func (a *Agent) ArchiveSession(ctx context.Context, sessionID, userID string) error {
	return a.sessions.Archive(ctx, sessionID, userID)
}

// ExpireIdle runs one expiry sweep.
func (a *Agent) ExpireIdle(ctx context.Context, idle time.Duration) (int, error) {
	return a.sessions.ExpireIdle(ctx, idle)
}

// Classify maps a flow error to an HTTP status and error code.
func Classify(err error) (int, string) {
	var (
		inputErr *models.InputError
		validErr *models.ValidationError
	)
	switch {
	case errors.As(err, &inputErr):
		return http.StatusUnprocessableEntity, models.ErrorInvalidRequest
	case errors.As(err, &validErr):
		return http.StatusUnprocessableEntity, models.ErrorValidation
	case errors.Is(err, ErrNoUser):
		return http.StatusUnauthorized, models.ErrorUnauthenticated
	case errors.Is(err, memory.ErrSessionNotFound):
		return http.StatusNotFound, models.ErrorSessionNotFound
	case errors.Is(err, memory.ErrSessionForbidden):
		return http.StatusForbidden, models.ErrorSessionForbidden
	case errors.Is(err, memory.ErrSessionInactive), errors.Is(err, memory.ErrInvalidTransition):
		return http.StatusConflict, models.ErrorSessionInactive
	}
	return http.StatusInternalServerError, models.ErrorInternal
}
