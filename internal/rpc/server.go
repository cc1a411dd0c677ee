// Package rpc hosts the market over HTTP: a JSON-RPC endpoint in the
// {"method": ..., "params": [{...}]} shape, a websocket event stream and the
// health and metrics endpoints.
package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LeJamon/goOfferd/internal/metrics"
	"github.com/LeJamon/goOfferd/internal/rpc/rpc_types"
	"go.uber.org/zap"
)

// maxRequestBody bounds the size of a JSON-RPC request
const maxRequestBody = 1 << 20

// Options configures a Server
type Options struct {
	Timeout           time.Duration
	RequireSignatures bool
	DevMethods        bool
	Logger            *zap.Logger
}

// Server handles HTTP JSON-RPC requests
type Server struct {
	registry          *rpc_types.MethodRegistry
	services          *rpc_types.ServiceContainer
	timeout           time.Duration
	requireSignatures bool
	logger            *zap.Logger
}

// NewServer creates a new RPC server over services
func NewServer(services *rpc_types.ServiceContainer, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	server := &Server{
		registry:          rpc_types.NewMethodRegistry(),
		services:          services,
		timeout:           opts.Timeout,
		requireSignatures: opts.RequireSignatures,
		logger:            logger.Named("rpc"),
	}

	server.registerAllMethods(opts.DevMethods)

	return server
}

// Methods returns the names of the registered methods
func (s *Server) Methods() []string {
	return s.registry.List()
}

// XrplRequest represents a JSON-RPC request
// Format: {"method": "method_name", "params": [{...}]}
type XrplRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params,omitempty"`
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		s.handleGetRequest(w, r)
	case http.MethodPost:
		s.handlePostRequest(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGetRequest processes GET requests for parameterless read methods
func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Query().Get("command")
	if method == "" {
		method = "server_info"
	}

	result, rpcErr := s.Execute(r.Context(), getClientIP(r), method, nil)
	s.writeXrplResponse(w, map[string]interface{}{"command": method}, result, rpcErr)
}

// handlePostRequest processes POST requests with a JSON-RPC payload
func (s *Server) handlePostRequest(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.writeXrplResponse(w, nil, nil, rpc_types.RpcErrorInternal("Failed to read request body"))
		return
	}

	var request XrplRequest
	if err := json.Unmarshal(body, &request); err != nil {
		s.writeXrplResponse(w, nil, nil, rpc_types.NewRpcError(rpc_types.RpcPARSE_ERROR, "jsonInvalid", "jsonInvalid", "Invalid JSON: "+err.Error()))
		return
	}
	if request.Method == "" {
		s.writeXrplResponse(w, nil, nil, rpc_types.NewRpcError(rpc_types.RpcMISSING_COMMAND, "missingCommand", "missingCommand", "Missing method field"))
		return
	}

	// params is an array holding one object
	var params json.RawMessage
	if len(request.Params) > 0 {
		params = request.Params[0]
	}

	result, rpcErr := s.Execute(r.Context(), getClientIP(r), request.Method, params)

	var requestObj interface{}
	if rpcErr != nil {
		reqMap := map[string]interface{}{}
		if params != nil {
			_ = json.Unmarshal(params, &reqMap)
			delete(reqMap, fieldSignature)
		}
		reqMap["command"] = request.Method
		requestObj = reqMap
	}
	s.writeXrplResponse(w, requestObj, result, rpcErr)
}

// Execute runs one method call. It is shared by the HTTP and websocket
// transports.
func (s *Server) Execute(ctx context.Context, clientIP, method string, params json.RawMessage) (result interface{}, rpcErr *rpc_types.RpcError) {
	start := time.Now()
	defer func() {
		status := "success"
		if rpcErr != nil {
			status = rpcErr.ErrorString
		}
		metrics.RPCRequest(method, status)
		s.logger.Debug("rpc call",
			zap.String("method", method),
			zap.String("client", clientIP),
			zap.String("status", status),
			zap.Duration("elapsed", time.Since(start)))
	}()

	handler, exists := s.registry.Get(method)
	if !exists {
		return nil, rpc_types.RpcErrorMethodNotFound(method)
	}

	rpcCtx := &rpc_types.RpcContext{
		Context:  ctx,
		ClientIP: clientIP,
		Services: s.services,
	}
	if handler.RequiredRole() == rpc_types.RoleSigner {
		caller, rpcErr := s.authenticate(method, params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		rpcCtx.Caller = caller
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		rpcCtx.Context, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	return handler.Handle(rpcCtx, params)
}

// writeXrplResponse writes a JSON-RPC response. result.status is "success"
// or "error"; errors carry error, error_code and error_message.
func (s *Server) writeXrplResponse(w http.ResponseWriter, request interface{}, result interface{}, rpcErr *rpc_types.RpcError) {
	response := make(map[string]interface{})

	if rpcErr != nil {
		resultObj := map[string]interface{}{
			"status":        "error",
			"error":         rpcErr.ErrorString,
			"error_code":    rpcErr.Code,
			"error_message": rpcErr.Message,
		}
		if request != nil {
			resultObj["request"] = request
		}
		response["result"] = resultObj
	} else if resultMap, ok := result.(map[string]interface{}); ok {
		resultMap["status"] = "success"
		response["result"] = resultMap
	} else {
		response["result"] = map[string]interface{}{
			"status": "success",
			"data":   result,
		}
	}

	responseData, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("failed to marshal response", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(responseData); err != nil {
		s.logger.Debug("failed to write response", zap.Error(err))
	}
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// NewHandler routes the JSON-RPC endpoint, the websocket stream, and the
// health and metrics endpoints
func NewHandler(server *Server, ws *WebSocketServer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", server)
	if ws != nil {
		mux.Handle("/ws", ws)
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
