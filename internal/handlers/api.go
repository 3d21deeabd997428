package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/idea-generator/internal/models"
	"github.com/MegaGrindStone/idea-generator/internal/services"
	"github.com/tmaxmax/go-sse"
)

// HandleAPI is the idea endpoint. It requires a bearer credential of a subscribed user and streams the
// generator's output as unnamed SSE events, one JSON-encoded string per chunk, followed by an "end"
// event.
func (m Main) HandleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s, err := m.identity.Authenticate(r)
	if err != nil {
		m.logger.Warn("Rejected idea request", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !s.Can(models.CapabilityGenerate) {
		m.logger.Warn("Idea request without subscription", slog.String("userID", s.User.ID))
		http.Error(w, "Subscription required", http.StatusForbidden)
		return
	}

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		m.logger.Error("Failed to upgrade to SSE", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	for chunk, err := range m.generator.Generate(r.Context(), m.cfg.IdeaPrompt) {
		if err != nil {
			if !errors.Is(err, r.Context().Err()) {
				m.logger.Error("Error from generator", slog.String(errLoggerKey, err.Error()))
			}
			break
		}
		if chunk == "" {
			continue
		}

		msg, err := fragmentMessage(chunk)
		if err != nil {
			m.logger.Error("Failed to encode chunk", slog.String(errLoggerKey, err.Error()))
			break
		}
		if err := sendFlush(sess, msg); err != nil {
			m.logger.Debug("Client went away", slog.String(errLoggerKey, err.Error()))
			return
		}
	}

	end := &sse.Message{Type: sse.Type(services.EndEventType)}
	end.AppendData("done")
	if err := sendFlush(sess, end); err != nil {
		m.logger.Debug("Failed to send end event", slog.String(errLoggerKey, err.Error()))
	}
}

// fragmentMessage encodes a chunk as a single JSON string data field. SSE cannot carry empty data
// lines, so a raw chunk made of newlines, or ending with one, would not survive the trip.
func fragmentMessage(chunk string) (*sse.Message, error) {
	data, err := json.Marshal(chunk)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fragment: %w", err)
	}

	msg := &sse.Message{}
	msg.AppendData(string(data))
	return msg, nil
}

func sendFlush(sess *sse.Session, msg *sse.Message) error {
	if err := sess.Send(msg); err != nil {
		return err
	}
	return sess.Flush()
}
