package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/doubt-service/internal/api/dto"
	"github.com/spec-kit/doubt-service/internal/auth"
	"github.com/spec-kit/doubt-service/internal/observability"
	"github.com/spec-kit/doubt-service/internal/realtime"
	"github.com/spec-kit/doubt-service/internal/service"
)

// StreamHandler pushes realtime changes to clients as server-sent events.
type StreamHandler struct {
	broker    realtime.Broker
	doubts    *service.DoubtService
	heartbeat time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewStreamHandler constructs handler.
func NewStreamHandler(broker realtime.Broker, doubts *service.DoubtService, heartbeat time.Duration, logger *zap.Logger, metrics *observability.Metrics) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &StreamHandler{broker: broker, doubts: doubts, heartbeat: heartbeat, logger: observability.OrNop(logger), metrics: metrics}
}

// DoubtEvents GET /doubts/:id/events.
func (h *StreamHandler) DoubtEvents(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.doubts.Authorize(c.UserContext(), auth.ActorFromContext(c), id); err != nil {
		return err
	}
	return h.stream(c, realtime.DoubtTopic(id))
}

// NotificationEvents GET /notifications/events.
func (h *StreamHandler) NotificationEvents(c *fiber.Ctx) error {
	return h.stream(c, realtime.UserTopic(auth.ActorFromContext(c).UserID))
}

func (h *StreamHandler) stream(c *fiber.Ctx, topic string) error {
	// The stream outlives the handler, so it cannot use the request context.
	ctx, cancel := context.WithCancel(context.Background())
	changes, unsubscribe, err := h.broker.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	h.metrics.SubscriberDelta(1)
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			unsubscribe()
			cancel()
			h.metrics.SubscriberDelta(-1)
		}()

		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()

		fmt.Fprintf(w, "retry: %d\n\n", 3000)
		if err := w.Flush(); err != nil {
			return
		}
		for {
			select {
			case change, ok := <-changes:
				if !ok {
					return
				}
				if err := writeChange(w, change); err != nil {
					h.logger.Debug("stream closed", zap.String("topic", topic), zap.Error(err))
					return
				}
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

func writeChange(w *bufio.Writer, change realtime.Change) error {
	payload, err := json.Marshal(dto.ChangeResponse{
		Kind:      string(change.Kind),
		DoubtID:   change.DoubtID,
		UserID:    change.UserID,
		Status:    change.Status,
		RecordID:  change.RecordID,
		UpdatedAt: change.UpdatedAt,
		At:        change.At,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Kind, payload)
	return w.Flush()
}
