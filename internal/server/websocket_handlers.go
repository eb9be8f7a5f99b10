package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/barscan/internal/barcode"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second

	wsResultType = "decode_result"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the CORS origin setting on HTTP routes;
		// camera pages are often served from another host.
		return true
	},
}

// WebSocketFrame is the JSON form of an image frame, for clients that cannot
// send binary messages. Image is base64 encoded.
type WebSocketFrame struct {
	Type        string `json:"type"`
	Image       []byte `json:"image"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// WebSocketDecodeResult answers exactly one received frame.
type WebSocketDecodeResult struct {
	Type      string         `json:"type"`
	OK        bool           `json:"ok"`
	Results   []barcode.Code `json:"results"`
	Error     string         `json:"error,omitempty"`
	Details   string         `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// decodeWebSocketHandler streams camera frames to the decoder. Every binary
// message is one image; every text message is a WebSocketFrame.
func (s *Server) decodeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established",
		"remote_addr", r.RemoteAddr, "request_id", RequestIDFromContext(r.Context()))

	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection reads frames until the peer goes away.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(s.maxUploadMB*1024*1024 + 1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket closed unexpectedly", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		websocketMessagesTotal.WithLabelValues("received").Inc()

		s.handleWebSocketMessage(ctx, conn, messageType, data)
	}
}

// handleWebSocketMessage decodes one frame and writes its result.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, messageType int, data []byte) {
	result := WebSocketDecodeResult{
		Type:      wsResultType,
		Results:   []barcode.Code{},
		RequestID: uuid.NewString(),
	}

	img, ok := frameImage(messageType, data)
	switch {
	case !ok:
		result.Error = "invalid frame"
	case s.decoder == nil || !s.decoder.Configured():
		decodeRequestsTotal.WithLabelValues("websocket", "config_error").Inc()
		result.Error = msgMissingAPIKey
	default:
		codes, err := s.decode(ctx, img, "websocket")
		if err != nil {
			_, resp := decodeErrorResponse(err)
			result.Error, result.Details = resp.Error, resp.Details
			slog.Warn("WebSocket decode failed", "error", err, "cause", upstreamCause(err), "request_id", result.RequestID)
			break
		}
		result.OK = true
		if codes != nil {
			result.Results = codes
		}
	}

	s.sendWebSocketResult(conn, result)
}

// frameImage extracts the image carried by a message.
func frameImage(messageType int, data []byte) (barcode.Image, bool) {
	switch messageType {
	case websocket.BinaryMessage:
		return barcode.Image{Data: data}, true
	case websocket.TextMessage:
		var frame WebSocketFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return barcode.Image{}, false
		}
		if frame.Type != "" && frame.Type != "image" {
			return barcode.Image{}, false
		}
		return barcode.Image{Data: frame.Image, Filename: frame.Filename, ContentType: frame.ContentType}, true
	default:
		return barcode.Image{}, false
	}
}

// sendWebSocketResult writes a result as a text message.
func (s *Server) sendWebSocketResult(conn WebSocketConnWriter, result WebSocketDecodeResult) {
	data, err := json.Marshal(result)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
