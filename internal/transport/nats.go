package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/avvvet/rhoai-intent/internal/config"
	"github.com/avvvet/rhoai-intent/internal/handlers"
	"github.com/avvvet/rhoai-intent/internal/models"
	"github.com/avvvet/rhoai-intent/internal/prompts"
)

// NATSTransport serves queries and confirmations over NATS request/reply.
// NATS callers are trusted services, so the user id travels in the
// request body.
type NATSTransport struct {
	conn   *nats.Conn
	config *config.Config
	agent  *handlers.Agent
	subs   []*nats.Subscription
	logger *zap.Logger
}

func NewNATSTransport(cfg *config.Config, agent *handlers.Agent, logger *zap.Logger) (*NATSTransport, error) {
	logger = logger.Named("nats")
	conn, err := nats.Connect(cfg.NatsURL,
		nats.Name(cfg.ServiceName),
		nats.Timeout(cfg.NatsTimeout),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("connected", zap.String("url", cfg.NatsURL))

	return &NATSTransport{
		conn:   conn,
		config: cfg,
		agent:  agent,
		logger: logger,
	}, nil
}

func (nt *NATSTransport) Start() error {
	for subject, handle := range map[string]func(context.Context, []byte) any{
		nt.config.NatsQuerySubject:   nt.query,
		nt.config.NatsConfirmSubject: nt.confirm,
	} {
		handle := handle
		sub, err := nt.conn.QueueSubscribe(subject, nt.config.ServiceName, func(msg *nats.Msg) {
			nt.serve(msg, handle)
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		nt.subs = append(nt.subs, sub)
		nt.logger.Info("subscribed", zap.String("subject", subject))
	}
	return nil
}

func (nt *NATSTransport) serve(msg *nats.Msg, handle func(context.Context, []byte) any) {
	ctx, cancel := context.WithTimeout(context.Background(), nt.config.NatsTimeout)
	defer cancel()

	data, err := json.Marshal(handle(ctx, msg.Data))
	if err != nil {
		nt.logger.Error("failed to marshal response", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		nt.logger.Error("failed to send response", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

func (nt *NATSTransport) query(ctx context.Context, data []byte) any {
	var req models.QueryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return queryError(req.SessionID, models.ErrorInvalidRequest, "Invalid request format")
	}
	resp, err := nt.agent.HandleQuery(ctx, req.UserID, &req, handlers.Client{UserAgent: "nats"})
	if err != nil {
		_, code := handlers.Classify(err)
		nt.logger.Info("query rejected", zap.String("session_id", req.SessionID), zap.String("code", code), zap.Error(err))
		return queryError(req.SessionID, code, err.Error())
	}
	return resp
}

func (nt *NATSTransport) confirm(ctx context.Context, data []byte) any {
	var req models.ConfirmRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return confirmError(req.SessionID, models.ErrorInvalidRequest, "Invalid request format")
	}
	resp, err := nt.agent.HandleConfirm(ctx, req.UserID, &req, handlers.Client{UserAgent: "nats"})
	if err != nil {
		_, code := handlers.Classify(err)
		nt.logger.Info("confirmation rejected", zap.String("session_id", req.SessionID), zap.String("code", code), zap.Error(err))
		return confirmError(req.SessionID, code, err.Error())
	}
	return resp
}

func queryError(sessionID, code, message string) *models.QueryResponse {
	return &models.QueryResponse{
		SessionID:    sessionID,
		Status:       models.StatusError,
		Message:      prompts.FallbackMessage,
		ErrorCode:    code,
		ErrorMessage: message,
	}
}

func confirmError(sessionID, code, message string) *models.ConfirmResponse {
	return &models.ConfirmResponse{
		SessionID:    sessionID,
		Status:       models.StatusError,
		Message:      prompts.Failure(message),
		ErrorCode:    code,
		ErrorMessage: message,
	}
}

// Close drains subscriptions and closes the connection.
func (nt *NATSTransport) Close() error {
	if nt.conn == nil {
		return nil
	}
	for _, sub := range nt.subs {
		if err := sub.Drain(); err != nil {
			nt.logger.Warn("failed to drain subscription", zap.String("subject", sub.Subject), zap.Error(err))
		}
	}
	if err := nt.conn.Drain(); err != nil {
		nt.conn.Close()
		return err
	}
	nt.logger.Info("connection closed")
	return nil
}
