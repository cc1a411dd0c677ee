package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LeJamon/goOfferd/internal/core/event"
	"github.com/LeJamon/goOfferd/internal/metrics"
	"github.com/LeJamon/goOfferd/internal/rpc/rpc_types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsMaxMessageSize = 512 * 1024
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = 54 * time.Second
	wsWriteWait      = 10 * time.Second
)

// WebSocketServer streams every published record to its clients and
// accepts method calls in the {"command": ..., "id": ..., ...params} shape
type WebSocketServer struct {
	upgrader websocket.Upgrader
	server   *Server
	bus      *event.Bus
	buffer   int
	logger   *zap.Logger

	nextID           atomic.Uint64
	connections      map[uint64]*WebSocketConnection
	connectionsMutex sync.Mutex
}

// WebSocketConnection represents a single WebSocket connection
type WebSocketConnection struct {
	ID          uint64
	conn        *websocket.Conn
	sub         *event.Subscription
	sendChannel chan []byte
	ctx         context.Context
	cancel      context.CancelFunc
	closeOnce   sync.Once
}

// WebSocketResponse is the reply to a command
type WebSocketResponse struct {
	Type         string      `json:"type"`
	ID           interface{} `json:"id,omitempty"`
	Status       string      `json:"status"`
	Result       interface{} `json:"result,omitempty"`
	Error        string      `json:"error,omitempty"`
	ErrorCode    int         `json:"error_code,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// eventMessage is a streamed record
type eventMessage struct {
	Type string `json:"type"`
	event.Record
}

// NewWebSocketServer creates a WebSocket server. Each client gets its own
// bus subscription holding up to buffer undelivered records.
func NewWebSocketServer(server *Server, bus *event.Bus, buffer int, logger *zap.Logger) *WebSocketServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		server:      server,
		bus:         bus,
		buffer:      buffer,
		logger:      logger.Named("ws"),
		connections: make(map[uint64]*WebSocketConnection),
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (ws *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	wsConn := &WebSocketConnection{
		ID:          ws.nextID.Add(1),
		conn:        conn,
		sub:         ws.bus.Subscribe(ws.buffer),
		sendChannel: make(chan []byte, 16),
		ctx:         ctx,
		cancel:      cancel,
	}

	ws.connectionsMutex.Lock()
	ws.connections[wsConn.ID] = wsConn
	ws.connectionsMutex.Unlock()
	metrics.WebsocketOpened()
	ws.logger.Debug("websocket connection opened",
		zap.Uint64("connection", wsConn.ID),
		zap.String("client", getClientIP(r)))

	go ws.handleSend(wsConn)
	go ws.handleConnection(wsConn, getClientIP(r))
}

// handleConnection processes messages from a WebSocket connection
func (ws *WebSocketServer) handleConnection(wsConn *WebSocketConnection, clientIP string) {
	defer ws.closeConnection(wsConn)

	wsConn.conn.SetReadLimit(wsMaxMessageSize)
	_ = wsConn.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	wsConn.conn.SetPongHandler(func(string) error {
		return wsConn.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, message, err := wsConn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.Debug("websocket read failed", zap.Uint64("connection", wsConn.ID), zap.Error(err))
			}
			return
		}
		ws.handleMessage(wsConn, clientIP, message)
	}
}

// handleSend owns the write side: streamed records, command replies and pings
func (ws *WebSocketServer) handleSend(wsConn *WebSocketConnection) {
	defer ws.closeConnection(wsConn)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-wsConn.ctx.Done():
			return
		case rec, ok := <-wsConn.sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(eventMessage{Type: "event", Record: rec})
			if err != nil {
				ws.logger.Error("failed to marshal record", zap.Uint64("seq", rec.Seq), zap.Error(err))
				continue
			}
			if err := ws.write(wsConn, websocket.TextMessage, data); err != nil {
				return
			}
		case message := <-wsConn.sendChannel:
			if err := ws.write(wsConn, websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.write(wsConn, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ws *WebSocketServer) write(wsConn *WebSocketConnection, messageType int, data []byte) error {
	_ = wsConn.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := wsConn.conn.WriteMessage(messageType, data); err != nil {
		ws.logger.Debug("websocket write failed", zap.Uint64("connection", wsConn.ID), zap.Error(err))
		return err
	}
	return nil
}

// handleMessage processes a single command from WebSocket
func (ws *WebSocketServer) handleMessage(wsConn *WebSocketConnection, clientIP string, message []byte) {
	var cmdMap map[string]json.RawMessage
	if err := json.Unmarshal(message, &cmdMap); err != nil {
		ws.sendError(wsConn, rpc_types.RpcErrorInvalidParams("Invalid JSON: "+err.Error()), nil)
		return
	}

	var id interface{}
	if raw, exists := cmdMap["id"]; exists {
		_ = json.Unmarshal(raw, &id)
	}

	var command string
	if raw, exists := cmdMap["command"]; exists {
		_ = json.Unmarshal(raw, &command)
	}
	if command == "" {
		ws.sendError(wsConn, rpc_types.NewRpcError(rpc_types.RpcMISSING_COMMAND, "missingCommand", "missingCommand", "Missing command field"), id)
		return
	}

	// The remaining fields are the params
	delete(cmdMap, "command")
	delete(cmdMap, "id")
	var params json.RawMessage
	if len(cmdMap) > 0 {
		params, _ = json.Marshal(cmdMap)
	}

	result, rpcErr := ws.server.Execute(wsConn.ctx, clientIP, command, params)
	if rpcErr != nil {
		ws.sendError(wsConn, rpcErr, id)
		return
	}
	ws.sendResponse(wsConn, WebSocketResponse{
		Type:   "response",
		ID:     id,
		Status: "success",
		Result: result,
	})
}

// sendResponse queues a reply. A client that does not drain its replies
// is disconnected.
func (ws *WebSocketServer) sendResponse(wsConn *WebSocketConnection, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		ws.logger.Error("failed to marshal websocket response", zap.Error(err))
		return
	}

	select {
	case wsConn.sendChannel <- data:
	case <-wsConn.ctx.Done():
	default:
		ws.logger.Warn("websocket send channel full, closing connection", zap.Uint64("connection", wsConn.ID))
		ws.closeConnection(wsConn)
	}
}

// sendError sends an error reply with flat error fields
func (ws *WebSocketServer) sendError(wsConn *WebSocketConnection, rpcErr *rpc_types.RpcError, id interface{}) {
	ws.sendResponse(wsConn, WebSocketResponse{
		Type:         "response",
		ID:           id,
		Status:       "error",
		Error:        rpcErr.ErrorString,
		ErrorCode:    rpcErr.Code,
		ErrorMessage: rpcErr.Message,
	})
}

// closeConnection releases a connection; it is safe to call more than once
func (ws *WebSocketServer) closeConnection(wsConn *WebSocketConnection) {
	wsConn.closeOnce.Do(func() {
		wsConn.cancel()
		wsConn.sub.Close()

		ws.connectionsMutex.Lock()
		delete(ws.connections, wsConn.ID)
		ws.connectionsMutex.Unlock()

		_ = wsConn.conn.Close()
		metrics.WebsocketClosed()
		ws.logger.Debug("websocket connection closed", zap.Uint64("connection", wsConn.ID))
	})
}

// Connections returns the number of open connections
func (ws *WebSocketServer) Connections() int {
	ws.connectionsMutex.Lock()
	defer ws.connectionsMutex.Unlock()
	return len(ws.connections)
}

// Close disconnects every client
func (ws *WebSocketServer) Close() error {
	ws.connectionsMutex.Lock()
	conns := make([]*WebSocketConnection, 0, len(ws.connections))
	for _, c := range ws.connections {
		conns = append(conns, c)
	}
	ws.connectionsMutex.Unlock()

	for _, c := range conns {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		ws.closeConnection(c)
	}
	if n := ws.Connections(); n > 0 {
		return fmt.Errorf("%d websocket connections still open", n)
	}
	return nil
}
