// Package client provides a Go client for the sibyl chat protocol.
// It maintains the connection lifecycle (reconnect with capped
// backoff), enforces the single in-flight query rule, and keeps an
// append-only conversation transcript. It is useful for integration
// testing and terminal frontends.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sibylchat/sibyl/internal/logging"
	"github.com/sibylchat/sibyl/internal/web"
)

// ErrNotConnected is returned when a message is submitted while the
// connection is down.
var ErrNotConnected = errors.New("not connected")

// ErrOffline is returned by Run when reconnect attempts are exhausted.
var ErrOffline = errors.New("connection attempts exhausted")

// ErrClearAborted is returned by ClearHistory when the ConfirmClear
// callback declines the clear.
var ErrClearAborted = errors.New("history clear aborted")

// DefaultAwaitTimeout bounds how long a query may wait for its
// terminal response before the client gives up on it.
const DefaultAwaitTimeout = 2 * time.Minute

// Callbacks defines hooks for session events.
// All callbacks are optional; nil callbacks are ignored.
type Callbacks struct {
	// OnConnected is called when the server confirms the first
	// connection. Later connections report through OnReconnected.
	OnConnected func(clientID string)

	// OnReconnected is called when the server confirms a connection
	// after the first one dropped. The client id is new each time.
	OnReconnected func(clientID string)

	// OnStatus is called for each processing status update.
	OnStatus func(requestID, message string)

	// OnFinalResponse is called when a query completes.
	OnFinalResponse func(data web.FinalResponseData)

	// OnError is called for error events. requestID is empty for
	// validation errors not tied to an accepted query.
	OnError func(requestID, message string)

	// OnHistoryCleared is called when the server confirms a history
	// clear.
	OnHistoryCleared func()

	// ConfirmClear gates ClearHistory. When non-nil and it returns
	// false the clear is abandoned before anything is touched.
	ConfirmClear func() bool

	// OnStateChange is called on every connection state transition.
	OnStateChange func(state ConnState)

	// OnDisconnected is called when the connection drops.
	OnDisconnected func(err error)
}

// Options configures a Controller.
type Options struct {
	// URL is the server base URL (e.g. "http://localhost:8080").
	URL string

	Reconnect    ReconnectPolicy
	AwaitTimeout time.Duration
	Callbacks    Callbacks
	Logger       *slog.Logger
}

// Controller runs one chat session against a sibyl server.
// It is safe for concurrent use.
type Controller struct {
	wsURL        string
	policy       ReconnectPolicy
	awaitTimeout time.Duration
	callbacks    Callbacks
	logger       *slog.Logger

	view     *ConversationView
	exchange Exchange

	mu            sync.Mutex
	state         ConnState
	conn          *websocket.Conn
	writeMu       sync.Mutex
	closed        bool
	everConnected bool
}

// New creates a controller. Run must be called to connect.
func New(opts Options) (*Controller, error) {
	wsURL, err := chatEndpoint(opts.URL)
	if err != nil {
		return nil, err
	}

	policy := opts.Reconnect
	if policy.BaseDelay == 0 {
		policy = DefaultReconnectPolicy()
	}
	awaitTimeout := opts.AwaitTimeout
	if awaitTimeout <= 0 {
		awaitTimeout = DefaultAwaitTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.WithComponent("client")
	}

	return &Controller{
		wsURL:        wsURL,
		policy:       policy,
		awaitTimeout: awaitTimeout,
		callbacks:    opts.Callbacks,
		logger:       logger,
		view:         NewConversationView(),
		state:        StateDisconnected,
	}, nil
}

// chatEndpoint converts a server base URL to the chat WebSocket URL.
func chatEndpoint(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	return u.String(), nil
}

// View returns the conversation transcript.
func (c *Controller) View() *ConversationView {
	return c.view
}

// State returns the current connection state.
func (c *Controller) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(state ConnState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	if c.callbacks.OnStateChange != nil {
		c.callbacks.OnStateChange(state)
	}
}

// Run connects and keeps the session alive until ctx is cancelled,
// Close is called, or the reconnect policy is exhausted (ErrOffline).
func (c *Controller) Run(ctx context.Context) error {
	failures := 0

	for {
		if c.isClosed() || ctx.Err() != nil {
			return nil
		}

		c.setState(StateConnecting)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
		if err != nil {
			failures++
			c.logger.Warn("dial failed", "attempt", failures, "error", err)
			c.setState(StateDisconnected)
			if c.policy.Exhausted(failures) {
				c.setState(StateOffline)
				return ErrOffline
			}
			select {
			case <-time.After(c.policy.Delay(failures - 1)):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		failures = 0
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		err = c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()

		// A drop while awaiting a response abandons the exchange: the
		// reconnected session has a new server-side identity and the
		// old request id will never resolve.
		if requestID, pending := c.exchange.Abort(); pending {
			c.view.Append(Entry{
				Kind:      EntryError,
				Text:      "Connection lost while waiting for a response",
				RequestID: requestID,
			})
			if c.callbacks.OnError != nil {
				c.callbacks.OnError(requestID, "Connection lost while waiting for a response")
			}
		}

		if c.callbacks.OnDisconnected != nil {
			c.callbacks.OnDisconnected(err)
		}
		if c.isClosed() || ctx.Err() != nil {
			c.setState(StateDisconnected)
			return nil
		}
		c.setState(StateDisconnected)
	}
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close shuts the session down. Run returns after the connection
// closes.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Send submits a query. It echoes the message into the transcript
// immediately and returns the request id the response will carry.
// A blank message is a no-op and returns an empty request id.
func (c *Controller) Send(message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", nil
	}
	if c.State() != StateConnected {
		return "", ErrNotConnected
	}

	requestID := uuid.NewString()
	if err := c.exchange.Begin(requestID); err != nil {
		return "", err
	}

	// Optimistic echo: the user's message appears before the server
	// acknowledges it.
	c.view.Append(Entry{Kind: EntryUser, Text: message, RequestID: requestID})

	err := c.writeMessage(web.WSMsgTypeSendMessage, web.SendMessageData{
		Message:   message,
		RequestID: requestID,
	})
	if err != nil {
		c.exchange.Finish(requestID)
		return "", err
	}

	// If no terminal message arrives in time, fail the exchange
	// locally so the session is usable again.
	time.AfterFunc(c.awaitTimeout, func() {
		if c.exchange.Finish(requestID) {
			c.view.Append(Entry{
				Kind:      EntryError,
				Text:      "Timed out waiting for a response",
				RequestID: requestID,
			})
			if c.callbacks.OnError != nil {
				c.callbacks.OnError(requestID, "Timed out waiting for a response")
			}
		}
	})

	return requestID, nil
}

// ClearHistory wipes the local transcript and asks the server to
// forget the conversation. The local clear does not wait for the
// server; history_cleared only confirms it. When disconnected the
// clear is local-only and ErrNotConnected reports that.
func (c *Controller) ClearHistory() error {
	if c.callbacks.ConfirmClear != nil && !c.callbacks.ConfirmClear() {
		return ErrClearAborted
	}
	c.view.Reset()
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	return c.writeMessage(web.WSMsgTypeClearHistory, nil)
}

func (c *Controller) writeMessage(msgType string, data interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	msg := web.WSMessage{Type: msgType}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return err
		}
		msg.Data = payload
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func (c *Controller) readLoop(conn *websocket.Conn) error {
	for {
		var msg web.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		switch msg.Type {
		case web.WSMsgTypeConnected:
			var data web.ConnectedData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				continue
			}
			c.mu.Lock()
			reconnected := c.everConnected
			c.everConnected = true
			c.mu.Unlock()
			c.setState(StateConnected)
			if reconnected {
				if c.callbacks.OnReconnected != nil {
					c.callbacks.OnReconnected(data.ClientID)
				}
			} else if c.callbacks.OnConnected != nil {
				c.callbacks.OnConnected(data.ClientID)
			}

		case web.WSMsgTypeStatusUpdate:
			var data web.StatusUpdateData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				continue
			}
			if c.exchange.Pending() != data.RequestID {
				continue // stale status after a reconnect
			}
			c.view.SetStatus(data.Message)
			if c.callbacks.OnStatus != nil {
				c.callbacks.OnStatus(data.RequestID, data.Message)
			}

		case web.WSMsgTypeFinalResponse:
			var data web.FinalResponseData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				continue
			}
			if !c.exchange.Finish(data.RequestID) {
				c.logger.Debug("dropping stale response", "request_id", data.RequestID)
				continue
			}
			c.view.Append(Entry{
				Kind:      EntryAssistant,
				Text:      data.Response,
				HTML:      data.ResponseHTML,
				RequestID: data.RequestID,
				Sources:   data.Sources,
			})
			if c.callbacks.OnFinalResponse != nil {
				c.callbacks.OnFinalResponse(data)
			}

		case web.WSMsgTypeError:
			var data web.ErrorData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				continue
			}
			if data.RequestID != "" {
				if !c.exchange.Finish(data.RequestID) {
					continue
				}
				c.view.Append(Entry{
					Kind:      EntryError,
					Text:      data.Message,
					RequestID: data.RequestID,
				})
			}
			if c.callbacks.OnError != nil {
				c.callbacks.OnError(data.RequestID, data.Message)
			}

		case web.WSMsgTypeHistoryCleared:
			c.view.Reset()
			if c.callbacks.OnHistoryCleared != nil {
				c.callbacks.OnHistoryCleared()
			}
		}
	}
}
