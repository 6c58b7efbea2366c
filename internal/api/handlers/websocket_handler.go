package handlers

import (
	"context"
	"errors"
	"sync"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/truthlens/backend/internal/audit"
	"github.com/truthlens/backend/internal/dataset"
	"github.com/truthlens/backend/internal/governance"
	"github.com/truthlens/backend/internal/metrics"
	"github.com/truthlens/backend/pkg/logger"
)

// Event types sent to websocket clients.
const (
	EventStatus = "status"
	EventResult = "result"
	EventError  = "error"
	EventReset  = "reset"
)

type wsMessage struct {
	Type     string       `json:"type"`
	Label    string       `json:"label"`
	Rows     dataset.Rows `json:"rows"`
	AIOutput string       `json:"ai_output"`
}

type wsEvent struct {
	Type   string                  `json:"type"`
	State  audit.State             `json:"state,omitempty"`
	Stage  audit.Stage             `json:"stage,omitempty"`
	Report *governance.AuditReport `json:"report,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

type WebSocketLimits struct {
	MaxRows       int
	MaxTextLength int
}

// WebSocketHandler drives one audit session per connection. Clients send
// {"type":"audit",...} and {"type":"reset"}; the server answers with
// status, result, error and reset events.
type WebSocketHandler struct {
	runner audit.Runner
	limits WebSocketLimits
}

func NewWebSocketHandler(runner audit.Runner, limits WebSocketLimits) *WebSocketHandler {
	return &WebSocketHandler{runner: runner, limits: limits}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")
	metrics.ActiveSessions.Inc()

	var writeMu sync.Mutex
	conn := newConnSession(h, func(ev wsEvent) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return c.WriteJSON(ev)
	})

	defer func() {
		conn.close()
		metrics.ActiveSessions.Dec()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}
		conn.handle(msg)
	}
}

// connSession is the per-connection state, separated from the socket so it
// can be driven directly.
type connSession struct {
	h       *WebSocketHandler
	session *audit.Session
	send    func(wsEvent) error
	wg      sync.WaitGroup
}

func newConnSession(h *WebSocketHandler, send func(wsEvent) error) *connSession {
	return &connSession{
		h:       h,
		session: audit.NewSession(h.runner),
		send:    send,
	}
}

func (s *connSession) handle(msg wsMessage) {
	switch msg.Type {
	case "audit":
		s.startAudit(msg)
	case "reset":
		s.session.Reset()
		s.emit(wsEvent{Type: EventReset, State: audit.StateIdle})
	default:
		s.emit(wsEvent{Type: EventError, Error: "Unknown message type"})
	}
}

func (s *connSession) startAudit(msg wsMessage) {
	req, problem := AuditRequest{Label: msg.Label, Rows: msg.Rows, AIOutput: msg.AIOutput}.toRequest()
	if problem == "" {
		problem = s.checkLimits(msg)
	}
	if problem != "" {
		s.emit(wsEvent{Type: EventError, Error: problem})
		return
	}
	req.Progress = func(stage audit.Stage) {
		s.emit(wsEvent{Type: EventStatus, State: audit.StateAnalyzing, Stage: stage})
	}

	run, err := s.session.Begin(context.Background(), req)
	if err != nil {
		s.emit(wsEvent{Type: EventError, Error: auditErrorMessage(err)})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		report, err := run()
		switch {
		case err == nil:
			s.emit(wsEvent{Type: EventResult, State: audit.StateResults, Report: report})
		case errors.Is(err, context.Canceled):
			// Reset by the client; the reset event has been sent.
		default:
			s.emit(wsEvent{Type: EventError, State: s.session.State(), Error: auditErrorMessage(err)})
		}
	}()
}

func (s *connSession) checkLimits(msg wsMessage) string {
	if s.h.limits.MaxRows > 0 && len(msg.Rows.Rows) > s.h.limits.MaxRows {
		return "Dataset exceeds maximum row count"
	}
	if s.h.limits.MaxTextLength > 0 && utf8.RuneCountInString(msg.AIOutput) > s.h.limits.MaxTextLength {
		return "AI output exceeds maximum length"
	}
	return ""
}

func (s *connSession) emit(ev wsEvent) {
	if err := s.send(ev); err != nil {
		logger.Debug("Failed to send WebSocket event", zap.String("type", ev.Type), zap.Error(err))
	}
}

// close abandons any running audit and waits for it to unwind.
func (s *connSession) close() {
	s.session.Reset()
	s.wg.Wait()
}
