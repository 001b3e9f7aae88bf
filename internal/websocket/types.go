package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raaihank/chatpsy/internal/privacy"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeAnonymization is sent after a chat export was anonymized
	EventTypeAnonymization EventType = "anonymization"
	// EventTypeAnalysis is sent after a remote analysis finished or failed
	EventTypeAnalysis EventType = "analysis"
	// EventTypeRequestLog represents a request logging event
	EventTypeRequestLog EventType = "request_log"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients. Payloads carry
// counts only: names, mappings and chat text are never broadcast.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	RequestID string    `json:"request_id,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, requestID string, data any) Event {
	return Event{Type: t, Timestamp: time.Now(), RequestID: requestID, Data: data}
}

// AnonymizationEvent summarizes one anonymization run
type AnonymizationEvent struct {
	Source       string            `json:"source"` // upload, text, batch
	Files        int               `json:"files"`
	InputBytes   int64             `json:"input_bytes"`
	Participants int               `json:"participants"`
	Findings     []privacy.Finding `json:"findings"`
	ProcessingMS float64           `json:"processing_ms"`
}

// AnalysisEvent summarizes one analysis request
type AnalysisEvent struct {
	Status       string  `json:"status"` // ok, cached, timeout, rate_limited, error
	AnalysisID   string  `json:"analysis_id,omitempty"`
	Participants int     `json:"participants"`
	InputBytes   int64   `json:"input_bytes"`
	DurationMS   float64 `json:"duration_ms"`
}

// RequestLogEvent represents a request logging event
type RequestLogEvent struct {
	Method       string        `json:"method"`
	Path         string        `json:"path"`
	StatusCode   int           `json:"status_code"`
	ClientIP     string        `json:"client_ip"`
	UserAgent    string        `json:"user_agent,omitempty"`
	Duration     time.Duration `json:"duration"`
	RequestSize  int64         `json:"request_size"`
	ResponseSize int64         `json:"response_size"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status              string `json:"status"`
	Uptime              string `json:"uptime"`
	TotalRequests       int64  `json:"total_requests"`
	TotalAnonymizations int64  `json:"total_anonymizations"`
	TotalAnalyses       int64  `json:"total_analyses"`
	ConnectedClients    int    `json:"connected_clients"`
	CacheBackend        string `json:"cache_backend"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
	Message  string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string               `json:"type"`
	Data *SubscriptionRequest `json:"data,omitempty"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType  `json:"events"`
	Filter *EventFilter `json:"filter,omitempty"`
}

// EventFilter narrows request_log events
type EventFilter struct {
	PathPrefixes  []string `json:"path_prefixes,omitempty"`
	ExcludeHealth bool     `json:"exclude_health,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string

	mu           sync.RWMutex
	subscription *SubscriptionRequest
}

// Subscribe replaces the client's subscription. nil means every event.
func (c *Client) Subscribe(sub *SubscriptionRequest) {
	c.mu.Lock()
	c.subscription = sub
	c.mu.Unlock()
}

func (c *Client) currentSubscription() *SubscriptionRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscription
}
