package ingest

import (
	"context"
	"errors"

	"github.com/nerrad567/bosun-core/internal/decoder"
	"github.com/nerrad567/bosun-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/bosun-core/internal/pipeline"
)

// Logger defines the logging interface used by the Handler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Ingester is what the handler feeds. *pipeline.Pipeline satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, adv pipeline.Advertisement) (*pipeline.Outcome, error)
}

// Subscriber is the part of the MQTT client the handler needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Handler feeds scanner messages from MQTT into the pipeline.
type Handler struct {
	ctx    context.Context
	target Ingester
	logger Logger
}

// NewHandler creates a Handler. ctx bounds every Ingest call made from
// MQTT callbacks.
func NewHandler(ctx context.Context, target Ingester, logger Logger) *Handler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Handler{ctx: ctx, target: target, logger: logger}
}

// Start subscribes the handler to topic.
func (h *Handler) Start(sub Subscriber, topic string, qos byte) error {
	if err := sub.Subscribe(topic, qos, h.HandleMessage); err != nil {
		return err
	}
	h.logger.Info("listening for advertisements", "topic", topic)
	return nil
}

// HandleMessage is an mqtt.MessageHandler. Only malformed messages produce
// an error; decode outcomes are already counted and logged by the pipeline.
func (h *Handler) HandleMessage(topic string, payload []byte) error {
	adv, err := Parse(payload)
	if err != nil {
		h.logger.Warn("dropping malformed advertisement", "topic", topic, "error", err)
		return err
	}

	if _, err := h.target.Ingest(h.ctx, adv); err != nil {
		switch {
		case errors.Is(err, decoder.ErrNoDecoder), errors.Is(err, decoder.ErrDecodeFailure):
		default:
			h.logger.Warn("advertisement rejected", "topic", topic, "address", adv.Address, "error", err)
		}
	}
	return nil
}
