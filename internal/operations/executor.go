// Package operations executes validated operation requests against the
// resource API. Every domain shares one state machine: validate, gate on
// confirmation, dispatch one verb, translate failures and audit the outcome.
// Executors never return errors; every failure is an ExecutionResult.
package operations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avvvet/rhoai-intent/internal/audit"
	"github.com/avvvet/rhoai-intent/internal/models"
)

// Domain is the verb table of one resource family.
type Domain interface {
	Name() string

	// Validate checks the domain-required parameters for the request's verb.
	// Failures are *models.ValidationError.
	Validate(req *models.OperationRequest) error

	// Dispatch runs the single resource API call the request maps to.
	Dispatch(ctx context.Context, req *models.OperationRequest) (map[string]any, error)

	Errors() ErrorTable
}

// Executor runs requests for one domain.
type Executor struct {
	domain  Domain
	sink    audit.Sink
	metrics *Metrics
	logger  *zap.Logger
}

func NewExecutor(domain Domain, sink audit.Sink, metrics *Metrics, logger *zap.Logger) *Executor {
	return &Executor{
		domain:  domain,
		sink:    sink,
		metrics: metrics,
		logger:  logger.With(zap.String("domain", domain.Name())),
	}
}

// Execute runs req and always returns a result. Except for the
// pending_confirmation short-circuit, exactly one audit entry is written.
func (e *Executor) Execute(ctx context.Context, req *models.OperationRequest) *models.ExecutionResult {
	start := time.Now()
	result := &models.ExecutionResult{
		OperationID:  req.OperationID,
		ResourceName: req.ResourceName,
		ResourceType: req.TargetResource,
		ResultData:   map[string]any{},
	}

	if err := e.domain.Validate(req); err != nil {
		result.Status = models.StatusError
		result.ErrorMessage = validationMessage(err)
		return e.finish(ctx, req, result, start)
	}

	if req.RequiresConfirmation && req.ConfirmationToken == "" {
		result.Status = models.StatusPendingConfirmation
		result.Duration = time.Since(start)
		e.metrics.observe(e.domain.Name(), string(req.OperationType), result.Status, result.Duration)
		e.logger.Info("operation awaiting confirmation",
			zap.String("operation_id", req.OperationID),
			zap.String("operation", operationName(req)))
		return result
	}

	data, err := e.domain.Dispatch(ctx, req)
	if err != nil {
		result.Status = models.StatusError
		if code, reason, ok := apiError(err); ok {
			result.ErrorMessage = e.domain.Errors().Translate(code, reason)
		} else {
			result.ErrorMessage = "Unexpected error: " + err.Error()
		}
		e.logger.Warn("operation failed",
			zap.String("operation_id", req.OperationID),
			zap.String("operation", operationName(req)),
			zap.Error(err))
		return e.finish(ctx, req, result, start)
	}

	result.Status = models.StatusSuccess
	if data != nil {
		result.ResultData = data
	}
	return e.finish(ctx, req, result, start)
}

func (e *Executor) finish(ctx context.Context, req *models.OperationRequest, result *models.ExecutionResult, start time.Time) *models.ExecutionResult {
	result.Duration = time.Since(start)
	e.metrics.observe(e.domain.Name(), string(req.OperationType), result.Status, result.Duration)

	entry := &audit.Entry{
		UserID:       req.UserID,
		SessionID:    req.SessionID,
		UserCommand:  userCommand(req),
		ParsedIntent: intentSnapshot(req),
		Operation:    operationName(req),
		Result:       map[string]any{"status": result.Status},
		Error:        result.ErrorMessage,
		Duration:     result.Duration,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
	}
	if err := e.sink.Record(ctx, entry); err != nil {
		e.logger.Error("failed to write audit entry", zap.String("operation_id", req.OperationID), zap.Error(err))
	}
	return result
}

// operationName is the audited resource API operation, e.g.
// "create_inference_service".
func operationName(req *models.OperationRequest) string {
	return fmt.Sprintf("%s_%s", req.OperationType, req.TargetResource)
}

func userCommand(req *models.OperationRequest) string {
	if req.UserCommand != "" {
		return req.UserCommand
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s", req.OperationType, req.ResourceName))
}

func intentSnapshot(req *models.OperationRequest) map[string]any {
	snapshot := map[string]any{
		"operation_type": string(req.OperationType),
		"resource":       string(req.TargetResource),
	}
	var params map[string]any
	if b, err := json.Marshal(req.Parameters); err == nil && json.Unmarshal(b, &params) == nil {
		snapshot["parameters"] = params
	}
	return snapshot
}

func validationMessage(err error) string {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return "Unexpected error: " + err.Error()
}

// namespaceOr returns the request namespace or fallback.
func namespaceOr(p models.Parameters, fallback string) string {
	if p.Namespace != "" {
		return p.Namespace
	}
	return fallback
}

func listResult(items []map[string]any) map[string]any {
	return map[string]any{"items": items, "count": len(items)}
}

func deletedResult(name, namespace string) map[string]any {
	return map[string]any{"name": name, "namespace": namespace, "deleted": true}
}
