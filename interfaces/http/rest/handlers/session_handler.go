package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storygraph/application/session"
	"storygraph/pkg/common"
	pkgerrors "storygraph/pkg/errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
	maxMessageSize = 4096
	maxRequestBody = 1 << 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	// Sessions are unauthenticated ids; the desktop client runs on a
	// local origin the browser reports inconsistently.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SessionHandler manages interactive view sessions and their WebSocket
// streams.
type SessionHandler struct {
	sessions *session.Manager
	defaults func() session.Config
	logger   *zap.Logger
	errors   *pkgerrors.ErrorHandler
	validate *validator.Validate
}

// NewSessionHandler creates a session handler. defaults supplies the
// current session defaults (tick interval, spread, canvas size) so
// tuning reloads apply to new sessions.
func NewSessionHandler(sessions *session.Manager, defaults func() session.Config, logger *zap.Logger, errors *pkgerrors.ErrorHandler) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		defaults: defaults,
		logger:   logger,
		errors:   errors,
		validate: validator.New(),
	}
}

type createSessionRequest struct {
	ProjectID string  `json:"project_id" validate:"required"`
	ViewMode  string  `json:"view_mode" validate:"omitempty,oneof=global chapter"`
	ChapterID string  `json:"chapter_id"`
	Width     float64 `json:"width" validate:"omitempty,gt=0"`
	Height    float64 `json:"height" validate:"omitempty,gt=0"`
	Spread    float64 `json:"spread" validate:"omitempty,gt=0"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// Create handles POST /sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := common.ParseJSONBody(r, &req, maxRequestBody); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body").WithCause(err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	cfg := h.defaults()
	cfg.ProjectID = req.ProjectID
	cfg.ViewMode = req.ViewMode
	cfg.ChapterID = req.ChapterID
	if req.Width > 0 {
		cfg.Width = req.Width
	}
	if req.Height > 0 {
		cfg.Height = req.Height
	}
	if req.Spread > 0 {
		cfg.Spread = req.Spread
	}

	sess, err := h.sessions.Create(r.Context(), cfg)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, createSessionResponse{SessionID: sess.ID()})
}

// Delete handles DELETE /sessions/{sessionID}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "sessionID")); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stream handles GET /sessions/{sessionID}/ws: it upgrades to a
// WebSocket, pumps client input events into the session and session
// updates back out. Closing the socket tears the session down.
func (h *SessionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("sessionID", sessionID), zap.Error(err))
		return
	}

	logger := h.logger.With(zap.String("sessionID", sessionID))
	done := make(chan struct{})
	go h.writePump(conn, sess, logger, done)
	h.readPump(conn, sess, logger)

	close(done)
	conn.Close()
	if err := h.sessions.Delete(sessionID); err == nil {
		logger.Info("session closed with its websocket")
	}
}

// readPump forwards client input events into the session until the
// connection drops.
func (h *SessionHandler) readPump(conn *websocket.Conn, sess *session.Session, logger *zap.Logger) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var ev session.InputEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		if err := sess.Dispatch(ev); err != nil {
			// Malformed events are the client's bug; drop them without
			// killing the stream.
			logger.Warn("rejected input event", zap.String("type", string(ev.Type)), zap.Error(err))
		}
	}
}

// writePump streams session updates and keepalive pings to the client.
func (h *SessionHandler) writePump(conn *websocket.Conn, sess *session.Session, logger *zap.Logger, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case u := <-sess.Updates():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(u); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
