package pubsub

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/sl"
	"FunnelRouter/internal/lib/validate"
	"FunnelRouter/internal/service/queue"
	"encoding/base64"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
)

type PushMessage struct {
	Data        string            `json:"data"`
	MessageID   string            `json:"messageId" validate:"required"`
	Attributes  map[string]string `json:"attributes"`
	PublishTime string            `json:"publishTime"`
}

// PushRequest is the envelope Pub/Sub posts to a push endpoint.
type PushRequest struct {
	Message         PushMessage `json:"message" validate:"required"`
	Subscription    string      `json:"subscription"`
	DeliveryAttempt int         `json:"deliveryAttempt"`
}

// Push runs the pipeline for a pushed message. 2xx acknowledges it; 503 makes Pub/Sub
// redeliver with the subscription's retry policy. Pub/Sub treats every other status as
// a nack too, so malformed envelopes are logged and acknowledged with 204.
func Push(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.pubsub"))

		var req PushRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			logger.Warn("dropping undecodable push envelope", sl.Err(err))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Warn("dropping invalid push envelope", sl.Err(err))
			w.WriteHeader(http.StatusNoContent)
			return
		}

		payload, err := base64.StdEncoding.DecodeString(req.Message.Data)
		if err != nil {
			logger.With(slog.String("message_id", req.Message.MessageID)).Warn("dropping push message with undecodable data", sl.Err(err))
			w.WriteHeader(http.StatusNoContent)
			return
		}

		attempt := req.DeliveryAttempt
		if attempt <= 0 {
			attempt = 1
		}

		result := handler.Handle(r.Context(), entity.QueueMessage{
			ID:         req.Message.MessageID,
			Payload:    payload,
			Attributes: req.Message.Attributes,
			Attempt:    attempt,
		})

		logger.With(
			slog.String("message_id", req.Message.MessageID),
			slog.String("subscription", req.Subscription),
			slog.Int("attempt", attempt),
			slog.String("result", result.String()),
		).Debug("push message handled")

		if result == queue.Nack {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
