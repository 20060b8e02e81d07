package training

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedgovio/fedgov/types"
)

// =============================================================================
// 🔌 Websocket transport
// =============================================================================

// wsConn adapts a coder/websocket connection to the session Conn.
type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) ReadText(ctx context.Context) (string, error) {
	typ, data, err := w.c.Read(ctx)
	if err != nil {
		return "", err
	}
	if typ != websocket.MessageText {
		return "", fmt.Errorf("expected a text frame, got %v", typ)
	}
	return string(data), nil
}

func (w *wsConn) WriteText(ctx context.Context, msg string) error {
	return w.c.Write(ctx, websocket.MessageText, []byte(msg))
}

func (w *wsConn) WriteJSON(ctx context.Context, v any) error {
	return wsjson.Write(ctx, w.c, v)
}

func (w *wsConn) Close(reason string) error {
	return w.c.Close(websocket.StatusNormalClosure, reason)
}

// HandleJoin upgrades the request and drives the participant's training
// handshake. The route carries the configuration id; the authenticated
// member is taken from the request context.
func (m *Manager) HandleJoin(w http.ResponseWriter, r *http.Request) {
	session, member, ok := m.upgradeTarget(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	if err := session.Serve(r.Context(), member, &wsConn{c: conn}); err != nil {
		m.logger.Info("participant handshake ended",
			zap.String("member", member.String()), zap.Error(err))
	}
}

// HandleRegisterDataset upgrades the request and runs the dataset
// registration sub-protocol.
func (m *Manager) HandleRegisterDataset(w http.ResponseWriter, r *http.Request) {
	session, member, ok := m.upgradeTarget(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	if err := session.RegisterDataset(r.Context(), member, &wsConn{c: conn}); err != nil {
		m.logger.Info("dataset registration ended",
			zap.String("member", member.String()), zap.Error(err))
	}
}

// upgradeTarget resolves the session and caller identity before the
// websocket upgrade, so routing errors surface as plain HTTP statuses.
func (m *Manager) upgradeTarget(w http.ResponseWriter, r *http.Request) (*Session, uuid.UUID, bool) {
	configurationID, err := uuid.Parse(r.PathValue("configuration_id"))
	if err != nil {
		http.Error(w, "invalid configuration id", http.StatusBadRequest)
		return nil, uuid.Nil, false
	}
	session, err := m.Get(configurationID)
	if err != nil {
		http.Error(w, "training session not found", http.StatusNotFound)
		return nil, uuid.Nil, false
	}

	raw, ok := types.MemberID(r.Context())
	if !ok {
		http.Error(w, "missing member identity", http.StatusUnauthorized)
		return nil, uuid.Nil, false
	}
	member, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid member identity", http.StatusUnauthorized)
		return nil, uuid.Nil, false
	}
	return session, member, true
}
