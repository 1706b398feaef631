// Package jsonrpc adapts the gateway core to JSON-RPC 2.0. Request/response
// methods are served over plain HTTP POST and over a websocket; the
// subscription pair is websocket-only, with update events pushed as
// jsonrpsee-style notifications.
package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/gridgate/gridgate/internal/apperrors"
	"github.com/gridgate/gridgate/internal/dispatch"
	"github.com/gridgate/gridgate/internal/jsoncodec"
	"github.com/gridgate/gridgate/internal/logging"
)

type request struct {
	JSONRPC *string         `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type errorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *errorObject    `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// notification is the subscription push frame: the method echoes the
// subscribe method name and params carry the subscription id and event.
type notification struct {
	JSONRPC string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  notificationParams `json:"params"`
}

type notificationParams struct {
	Subscription string `json:"subscription"`
	Result       any    `json:"result"`
}

const (
	methodGetUserInfo       = "get_user_info"
	methodUpdateUserInfo    = "update_user_info"
	methodVerifyCredentials = "verify_credentials"
	methodSubscribe         = "subscribe_user_updates"
	methodUnsubscribe       = "unsubscribe_user_updates"
)

// Server is the JSON-RPC adapter.
type Server struct {
	core     dispatch.Core
	logger   logging.ServiceLogger
	upgrader websocket.Upgrader
}

// NewServer binds the JSON-RPC adapter to the core dispatcher.
func NewServer(d *dispatch.Dispatcher, logger logging.ServiceLogger) *Server {
	return &Server{
		core:   d.Protocol("jsonrpc"),
		logger: logger.With(logging.LogFields{"adapter": "jsonrpc"}),
		upgrader: websocket.Upgrader{
			// The REST layer owns origin policy; the RPC port accepts any.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler serves websocket upgrades on "/" and plain POST requests on both
// "/" and "/jsonrpc".
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.HandleFunc("/jsonrpc", s.handle)
	return mux
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.serveWebSocket(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	s.servePost(w, r)
}

// servePost answers a single request/response call. Subscriptions need a
// live connection and are reported as unknown methods here.
func (s *Server) servePost(w http.ResponseWriter, r *http.Request) {
	var payload json.RawMessage
	if err := jsoncodec.Decode(r.Body, &payload); err != nil {
		s.writeHTTP(w, s.errorResponse(nil, wireError(apperrors.CodeMalformedRequest)))
		return
	}

	req, errObj := parseRequest(payload)
	if errObj != nil {
		s.writeHTTP(w, s.errorResponse(requestID(payload), errObj))
		return
	}

	var resp response
	switch req.Method {
	case methodSubscribe, methodUnsubscribe:
		resp = s.errorResponse(req.ID, &errorObject{
			Code:    apperrors.JSONRPCInvalidRequest,
			Message: "Invalid Request: subscriptions require a websocket connection",
		})
	default:
		resp = s.call(r.Context(), req)
	}
	s.writeHTTP(w, resp)
}

// call dispatches the request/response methods shared by both transports.
func (s *Server) call(ctx context.Context, req *request) response {
	switch req.Method {
	case methodGetUserInfo:
		var params struct {
			UserID int32 `json:"user_id"`
		}
		if len(req.Params) > 0 {
			if err := jsoncodec.Unmarshal(req.Params, &params); err != nil {
				return s.errorResponse(req.ID, wireError(apperrors.CodeInvalidArguments))
			}
		}
		if params.UserID == 0 {
			params.UserID = 1
		}
		user, err := s.core.GetUser(ctx, params.UserID)
		if err != nil {
			return s.errorResponse(req.ID, taxonomyError(err))
		}
		return s.resultResponse(req.ID, map[string]any{
			"name":   user.Name,
			"age":    user.Age,
			"email":  user.Email,
			"status": "active",
		})

	case methodUpdateUserInfo:
		var params struct {
			UserID int32  `json:"user_id"`
			Name   string `json:"name"`
			Email  string `json:"email"`
			Age    int32  `json:"age"`
		}
		if len(req.Params) > 0 {
			if err := jsoncodec.Unmarshal(req.Params, &params); err != nil {
				return s.errorResponse(req.ID, wireError(apperrors.CodeInvalidArguments))
			}
		}
		if params.UserID == 0 {
			params.UserID = 1
		}
		user, err := s.core.UpdateUser(ctx, params.UserID, params.Name, params.Email, params.Age)
		if err != nil {
			return s.errorResponse(req.ID, taxonomyError(err))
		}
		return s.resultResponse(req.ID, map[string]any{
			"success": true,
			"message": fmt.Sprintf("User information updated: %s (%d years old)", user.Name, user.Age),
		})

	case methodVerifyCredentials:
		var params struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if len(req.Params) > 0 {
			if err := jsoncodec.Unmarshal(req.Params, &params); err != nil {
				return s.errorResponse(req.ID, wireError(apperrors.CodeInvalidArguments))
			}
		}
		authenticated, token := s.core.VerifyCredentials(ctx, params.Username, params.Password)
		return s.resultResponse(req.ID, map[string]any{
			"authenticated": authenticated,
			"token":         token,
		})
	}

	return s.errorResponse(req.ID, wireError(apperrors.CodeUnknownMethod))
}

func (s *Server) resultResponse(id json.RawMessage, result any) response {
	return response{JSONRPC: "2.0", Result: result, ID: normalizeID(id)}
}

func (s *Server) errorResponse(id json.RawMessage, errObj *errorObject) response {
	return response{JSONRPC: "2.0", Error: errObj, ID: normalizeID(id)}
}

func (s *Server) writeHTTP(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := jsoncodec.Encode(w, resp); err != nil {
		s.logger.Error("Failed to encode response", err, nil)
	}
}

// wireError builds the error object for a taxonomy code using its canonical
// message and the JSON-RPC wire code.
func wireError(code apperrors.Code) *errorObject {
	return &errorObject{
		Code:    apperrors.JSONRPCCode(code),
		Message: code.Message(),
	}
}

// taxonomyError preserves the (code, message) pair of a core failure.
func taxonomyError(err error) *errorObject {
	return &errorObject{
		Code:    apperrors.JSONRPCCode(apperrors.CodeOf(err)),
		Message: apperrors.MessageOf(err),
	}
}

// parseRequest validates the JSON-RPC envelope. The checks and the message
// texts follow the upstream contract. Websocket frames arrive here unparsed,
// so the syntax check cannot be left to the HTTP body decoder.
func parseRequest(payload json.RawMessage) (*request, *errorObject) {
	if !jsoncodec.Valid(payload) {
		return nil, wireError(apperrors.CodeMalformedRequest)
	}
	var probe any
	if err := jsoncodec.Unmarshal(payload, &probe); err != nil {
		return nil, wireError(apperrors.CodeMalformedRequest)
	}
	if _, ok := probe.(map[string]any); !ok {
		return nil, &errorObject{
			Code:    apperrors.JSONRPCInvalidRequest,
			Message: "Invalid Request: payload must be an object",
		}
	}

	var req request
	if err := jsoncodec.Unmarshal(payload, &req); err != nil {
		return nil, &errorObject{
			Code:    apperrors.JSONRPCInvalidRequest,
			Message: "Invalid Request: missing required fields",
		}
	}
	if req.Method == "" {
		return nil, &errorObject{
			Code:    apperrors.JSONRPCInvalidRequest,
			Message: "Invalid Request: method is required",
		}
	}
	if req.JSONRPC != nil && *req.JSONRPC != "2.0" {
		return nil, &errorObject{
			Code:    apperrors.JSONRPCInvalidRequest,
			Message: "Invalid Request: jsonrpc version must be 2.0",
		}
	}
	return &req, nil
}

// requestID pulls the id out of a payload that failed validation so the
// error response can still be correlated.
func requestID(payload json.RawMessage) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := jsoncodec.Unmarshal(payload, &probe); err != nil {
		return nil
	}
	return probe.ID
}

// normalizeID keeps absent ids as an explicit null in responses.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
