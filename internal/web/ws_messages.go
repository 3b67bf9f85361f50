// Package web serves the sibyl browser interface: static assets, a
// health endpoint, and the chat WebSocket.
//
// # WebSocket Protocol Overview
//
// The browser connects to a single endpoint:
//   - /ws: the chat channel for one client
//
// All messages are JSON-encoded with the following structure:
//
//	{
//	    "type": "message_type",
//	    "data": { ... }  // Optional, type-specific payload
//	}
package web

import (
	"encoding/json"

	"github.com/sibylchat/sibyl/internal/agent"
)

// WSMessage is the envelope for all WebSocket communication.
type WSMessage struct {
	Type string          `json:"type"`           // Message type (see WSMsgType* constants)
	Data json.RawMessage `json:"data,omitempty"` // Type-specific payload
}

// ParseMessage parses raw message bytes into a WSMessage.
func ParseMessage(data []byte) (WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return msg, err
}

// =============================================================================
// Browser → Server Message Types
// =============================================================================

const (
	// WSMsgTypeSendMessage submits a user query.
	// Data: { "message": string, "request_id": string }
	WSMsgTypeSendMessage = "send_message"

	// WSMsgTypeClearHistory asks the server to forget this client's
	// conversation history and personalization data.
	// Data: none
	WSMsgTypeClearHistory = "clear_history"

	// WSMsgTypeKeepalive is an application-level heartbeat some clients
	// send in addition to protocol pings. It gets no reply.
	// Data: { "timestamp": number } (ignored)
	WSMsgTypeKeepalive = "keepalive"
)

// =============================================================================
// Server → Browser Message Types
// =============================================================================

const (
	// WSMsgTypeConnected confirms the connection is established.
	// Sent exactly once, immediately after the upgrade.
	// Data: { "client_id": string, "message": string }
	WSMsgTypeConnected = "connected"

	// WSMsgTypeStatusUpdate reports processing progress for an
	// in-flight query. Zero or more are sent before the final response.
	// Data: { "message": string, "request_id": string }
	WSMsgTypeStatusUpdate = "status_update"

	// WSMsgTypeFinalResponse carries the completed answer. Exactly one
	// terminal message (final_response or error) is sent per query.
	WSMsgTypeFinalResponse = "final_response"

	// WSMsgTypeError reports a failure. For query failures the payload
	// carries the originating request_id; validation errors for
	// malformed frames omit it.
	// Data: { "message": string, "request_id": string (optional) }
	WSMsgTypeError = "error"

	// WSMsgTypeHistoryCleared confirms a clear_history request.
	// Data: { "message": string }
	WSMsgTypeHistoryCleared = "history_cleared"
)

// SendMessageData is the payload of a send_message frame. RequestID is
// chosen by the client and echoed back on every status_update and on
// the terminal message, so responses can never be attributed to the
// wrong query after a reconnect.
type SendMessageData struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// ConnectedData is the payload of the connected event.
type ConnectedData struct {
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

// StatusUpdateData is the payload of a status_update event.
type StatusUpdateData struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// HistoryClearedData is the payload of a history_cleared event.
type HistoryClearedData struct {
	Message string `json:"message"`
}

// FinalResponseData is the payload of a final_response event. It
// carries the pipeline result plus the rendered HTML so the browser
// never has to interpret markdown itself.
type FinalResponseData struct {
	agent.Result
	ResponseHTML string `json:"response_html"`
	RequestID    string `json:"request_id"`
}
