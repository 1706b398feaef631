package jsonrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/gridgate/gridgate/internal/apperrors"
	"github.com/gridgate/gridgate/internal/jsoncodec"
	"github.com/gridgate/gridgate/internal/logging"
	"github.com/gridgate/gridgate/internal/stream"
)

// wsConn is one websocket session: a single read loop, a write mutex shared
// by responses and subscription pushes, and the session's live subscriptions.
type wsConn struct {
	server *Server
	ws     *websocket.Conn
	logger logging.ServiceLogger

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]*stream.Subscription
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Websocket upgrade failed", err, nil)
		return
	}

	// The upgraded connection outlives the HTTP request; its lifetime is the
	// read loop's.
	ctx, cancel := context.WithCancel(context.Background())
	conn := &wsConn{
		server: s,
		ws:     ws,
		logger: s.logger.With(logging.LogFields{"remote": ws.RemoteAddr().String()}),
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]*stream.Subscription),
	}
	conn.readLoop()
}

func (c *wsConn) readLoop() {
	defer c.close()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.handleMessage(data)
	}
}

// close cancels every subscription opened on this connection. Producers stop
// within one tick.
func (c *wsConn) close() {
	c.cancel()

	c.mu.Lock()
	subs := make([]*stream.Subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.subs = make(map[string]*stream.Subscription)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	_ = c.ws.Close()
}

func (c *wsConn) handleMessage(data []byte) {
	req, errObj := parseRequest(data)
	if errObj != nil {
		c.writeJSON(c.server.errorResponse(requestID(data), errObj))
		return
	}

	switch req.Method {
	case methodSubscribe:
		c.subscribe(req)
	case methodUnsubscribe:
		c.writeJSON(c.unsubscribe(req))
	default:
		c.writeJSON(c.server.call(c.ctx, req))
	}
}

// subscribe opens a stream and answers with its subscription id. The response
// frame is written before the push loop starts, so the client always learns
// the id before the first notification carrying it.
func (c *wsConn) subscribe(req *request) {
	var params struct {
		UserID          int32 `json:"user_id"`
		IntervalSeconds int32 `json:"interval_seconds"`
	}
	if len(req.Params) > 0 {
		if err := jsoncodec.Unmarshal(req.Params, &params); err != nil {
			c.writeJSON(c.server.errorResponse(req.ID, wireError(apperrors.CodeInvalidArguments)))
			return
		}
	}

	sub, err := c.server.core.SubscribeUserUpdates(c.ctx, params.UserID, params.IntervalSeconds)
	if err != nil {
		c.writeJSON(c.server.errorResponse(req.ID, taxonomyError(err)))
		return
	}

	c.mu.Lock()
	c.subs[sub.ID()] = sub
	c.mu.Unlock()

	c.writeJSON(c.server.resultResponse(req.ID, sub.ID()))
	go c.pushUpdates(sub)
}

func (c *wsConn) unsubscribe(req *request) response {
	id, ok := unsubscribeID(req.Params)
	if !ok {
		return c.server.errorResponse(req.ID, wireError(apperrors.CodeInvalidArguments))
	}

	c.mu.Lock()
	sub, owned := c.subs[id]
	if owned {
		delete(c.subs, id)
	}
	c.mu.Unlock()

	if owned {
		sub.Cancel()
	}
	return c.server.resultResponse(req.ID, owned)
}

// pushUpdates forwards stream events to the client until the subscription
// closes. A failed write tears the subscription down.
func (c *wsConn) pushUpdates(sub *stream.Subscription) {
	defer func() {
		c.mu.Lock()
		delete(c.subs, sub.ID())
		c.mu.Unlock()
	}()

	for update := range sub.Updates() {
		err := c.writeJSON(notification{
			JSONRPC: "2.0",
			Method:  methodSubscribe,
			Params: notificationParams{
				Subscription: sub.ID(),
				Result:       update,
			},
		})
		if err != nil {
			sub.Cancel()
			return
		}
	}
}

func (c *wsConn) writeJSON(v any) error {
	payload, err := jsoncodec.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode frame", err, nil)
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// unsubscribeID accepts the id as a bare string, a one-element array, or an
// object with a "subscription" key.
func unsubscribeID(params json.RawMessage) (string, bool) {
	if len(params) == 0 {
		return "", false
	}

	var bare string
	if err := jsoncodec.Unmarshal(params, &bare); err == nil && bare != "" {
		return bare, true
	}

	var list []string
	if err := jsoncodec.Unmarshal(params, &list); err == nil && len(list) == 1 && list[0] != "" {
		return list[0], true
	}

	var obj struct {
		Subscription string `json:"subscription"`
	}
	if err := jsoncodec.Unmarshal(params, &obj); err == nil && obj.Subscription != "" {
		return obj.Subscription, true
	}
	return "", false
}
