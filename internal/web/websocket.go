package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// maxQueryChars bounds a single user query. Larger frames are rejected
// at the protocol level by the read limit; this guards the query text
// itself.
const maxQueryChars = 4000

// Per-connection message rate: bursts of 5, refilling at 2 per second.
const (
	messageRateBurst    = 5
	messageRateInterval = 500 * time.Millisecond
)

// handleChatWS upgrades the connection and runs the chat protocol for
// one client. Each connection gets a fresh client identity; the
// conversation history lives for exactly as long as the connection.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	clientIP := clientIP(r)

	if !s.tracker.TryAdd(clientIP) {
		s.logger.Warn("connection limit reached", "client_ip", clientIP)
		http.Error(w, "Too many connections", http.StatusTooManyRequests)
		return
	}

	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.tracker.Remove(clientIP)
		s.logger.Warn("websocket upgrade failed", "client_ip", clientIP, "error", err)
		return
	}

	clientID := uuid.NewString()
	wsc := NewWSConn(WSConnConfig{
		Conn:     conn,
		Config:   s.wsSecurityConfig,
		Logger:   s.logger,
		ClientIP: clientIP,
		Tracker:  s.tracker,
	})

	log := s.logger.With("client_id", clientID, "client_ip", clientIP)
	log.Info("client connected")

	ctx, cancel := context.WithCancel(r.Context())
	done := make(chan struct{})
	go wsc.WritePump(ctx, done)

	wsc.SendMessage(WSMsgTypeConnected, ConnectedData{
		ClientID: clientID,
		Message:  "Connected to server",
	})

	limiter := rate.NewLimiter(rate.Every(messageRateInterval), messageRateBurst)

	defer func() {
		cancel()
		wsc.Close()
		<-done
		wsc.ReleaseConnectionSlot()

		// A disconnect ends the conversation: drop the in-process
		// history and everything the pipeline remembers about the
		// client.
		s.history.Clear(clientID)
		if err := s.agent.Clear(context.Background(), clientID); err != nil {
			log.Warn("clearing client state failed", "error", err)
		}
		log.Info("client disconnected")
	}()

	for {
		raw, err := wsc.ReadMessage()
		if err != nil {
			return
		}

		msg, err := ParseMessage(raw)
		if err != nil {
			wsc.SendError("Invalid message format", "")
			continue
		}

		switch msg.Type {
		case WSMsgTypeSendMessage:
			s.handleSendMessage(ctx, wsc, log, limiter, clientID, msg.Data)
			wsc.RefreshReadDeadline()

		case WSMsgTypeClearHistory:
			s.handleClearHistory(ctx, wsc, log, clientID)

		case WSMsgTypeKeepalive:
			wsc.RefreshReadDeadline()

		default:
			wsc.SendError("Unknown message type: "+msg.Type, "")
		}
	}
}

// handleSendMessage validates and processes one query. Queries on a
// connection are processed strictly in order, so every status_update
// for a query precedes its terminal message.
func (s *Server) handleSendMessage(ctx context.Context, wsc *WSConn, log *slog.Logger,
	limiter *rate.Limiter, clientID string, data json.RawMessage) {

	var req SendMessageData
	if err := json.Unmarshal(data, &req); err != nil {
		wsc.SendError("Invalid message format", "")
		return
	}

	query := strings.TrimSpace(req.Message)
	if query == "" {
		wsc.SendError("Message cannot be empty", req.RequestID)
		return
	}
	if utf8.RuneCountInString(query) > maxQueryChars {
		wsc.SendError("Message too long", req.RequestID)
		return
	}
	if !limiter.Allow() {
		wsc.SendError("Too many messages, please slow down", req.RequestID)
		return
	}

	log.Info("processing query", "request_id", req.RequestID, "length", len(query))
	start := time.Now()

	status := func(message string) {
		wsc.SendMessage(WSMsgTypeStatusUpdate, StatusUpdateData{
			Message:   message,
			RequestID: req.RequestID,
		})
	}

	history := s.history.History(clientID)
	result := s.agent.Run(ctx, clientID, query, history, status)

	s.history.Append(clientID, query, result.Response)

	wsc.SendMessage(WSMsgTypeFinalResponse, FinalResponseData{
		Result:       *result,
		ResponseHTML: s.converter.ConvertToSafeHTML(result.Response),
		RequestID:    req.RequestID,
	})

	log.Info("query completed",
		"request_id", req.RequestID,
		"method", result.Method,
		"confidence", result.Confidence,
		"elapsed", time.Since(start))
}

func (s *Server) handleClearHistory(ctx context.Context, wsc *WSConn, log *slog.Logger, clientID string) {
	s.history.Clear(clientID)
	if err := s.agent.Clear(ctx, clientID); err != nil {
		log.Warn("clearing client state failed", "error", err)
		wsc.SendError("Failed to clear history", "")
		return
	}

	log.Info("history cleared")
	wsc.SendMessage(WSMsgTypeHistoryCleared, HistoryClearedData{
		Message: "Conversation history cleared",
	})
}
