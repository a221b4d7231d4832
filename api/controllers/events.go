package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/angelmondragon/vendorcrm-backend/api/responses"
	"github.com/angelmondragon/vendorcrm-backend/internal/realtime"
	"github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

// EventSubscriber hands out per-principal realtime streams.
type EventSubscriber interface {
	Subscribe(principal auth.Principal) (<-chan realtime.Message, func())
}

// Events streams realtime messages visible to the caller as server-sent
// events. Heartbeat comments keep idle proxies from closing the stream.
func Events(hub EventSubscriber, heartbeat time.Duration, logg *logger.Logger) http.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if hub == nil {
			responses.WriteError(ctx, logg, w, unavailable("realtime hub"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		stream, cancel := hub.Subscribe(principal)
		defer cancel()

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		logg.Debug(ctx, "events.stream.opened")
		for {
			select {
			case <-ctx.Done():
				logg.Debug(ctx, "events.stream.closed")
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case msg, ok := <-stream:
				if !ok {
					return
				}
				if err := writeEvent(w, msg); err != nil {
					logg.Warn(logg.WithField(ctx, "event_id", msg.ID), "events.stream.write_failed")
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, msg realtime.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", msg.ID, msg.Type, data)
	return err
}
