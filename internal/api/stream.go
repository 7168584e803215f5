package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/labsense-server/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The API has no cookie-based auth, so cross-origin sockets are safe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamMessage is one frame of the evaluation stream. Findings arrive
// individually as they rank, then conditions and actions, then a final
// summary frame carrying the whole bundle.
type StreamMessage struct {
	Type      string                    `json:"type"` // finding, condition, action, complete, error
	Finding   *domain.MatchedFinding    `json:"finding,omitempty"`
	Condition *domain.LinkedCondition   `json:"condition,omitempty"`
	Action    *domain.RecommendedAction `json:"action,omitempty"`
	Signals   *domain.ClinicalSignals   `json:"signals,omitempty"`
	Error     *domain.APIError          `json:"error,omitempty"`
}

const streamWriteTimeout = 10 * time.Second

// handleEvaluateStream evaluates one request per connection and streams
// the bundle back element by element.
func (s *Server) handleEvaluateStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.WithError(err).Debug("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	var req EvaluateRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.writeStreamError(conn, domain.ErrCodeInvalidInput, "malformed request")
		return
	}

	signals, err := s.evaluator.Evaluate(c.Request.Context(), req.Readings, req.Profile)
	if err != nil {
		code := domain.ErrCodeEvaluation
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			code = domain.ErrCodeInvalidInput
		} else {
			s.log.WithError(err).Error("Stream evaluation failed")
		}
		s.writeStreamError(conn, code, err.Error())
		return
	}

	for i := range signals.Findings {
		if !s.writeStreamMessage(conn, StreamMessage{Type: "finding", Finding: &signals.Findings[i]}) {
			return
		}
	}
	for i := range signals.Conditions {
		if !s.writeStreamMessage(conn, StreamMessage{Type: "condition", Condition: &signals.Conditions[i]}) {
			return
		}
	}
	for i := range signals.Actions {
		if !s.writeStreamMessage(conn, StreamMessage{Type: "action", Action: &signals.Actions[i]}) {
			return
		}
	}
	s.writeStreamMessage(conn, StreamMessage{Type: "complete", Signals: signals})

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteTimeout))
}

func (s *Server) writeStreamMessage(conn *websocket.Conn, msg StreamMessage) bool {
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		s.log.WithError(err).Debug("WebSocket write failed")
		return false
	}
	return true
}

func (s *Server) writeStreamError(conn *websocket.Conn, code, message string) {
	s.writeStreamMessage(conn, StreamMessage{
		Type:  "error",
		Error: domain.NewAPIError(code, message, "", ""),
	})
}

