package liveview

import (
	"time"

	"go_irimager/capture"
	"go_irimager/irimager"
)

// Message types sent to WebSocket clients.
const (
	// MessageTypeInitial carries the latest frame right after connecting.
	MessageTypeInitial = "initial"
	// MessageTypeFrame carries one captured frame.
	MessageTypeFrame = "frame"
	// MessageTypeError reports a capture failure.
	MessageTypeError = "error"
)

// WSMessage is the envelope for every WebSocket message.
type WSMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// NewWSMessage creates a message stamped with the current time.
func NewWSMessage(msgType string, data any) WSMessage {
	return WSMessage{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// FrameData describes one frame for the browser. Image is the palette
// frame as PNG and is base64 encoded by encoding/json.
type FrameData struct {
	SessionID  string         `json:"session_id"`
	Seq        int64          `json:"seq"`
	CapturedAt time.Time      `json:"captured_at"`
	Thermal    irimager.Size  `json:"thermal"`
	Stats      irimager.Stats `json:"stats"`
	Attempts   int            `json:"attempts"`
	Image      []byte         `json:"image,omitempty"`
}

// NewFrameData converts a capture. image may be nil.
func NewFrameData(c *capture.Capture, image []byte) FrameData {
	fd := FrameData{
		SessionID: c.SessionID,
		Seq:       c.Seq,
		Stats:     c.Stats,
		Attempts:  c.Attempts,
		Image:     image,
	}
	if c.Thermal != nil {
		fd.CapturedAt = c.CapturedAt()
		fd.Thermal = c.Thermal.Size
	}
	return fd
}

// InitialData is sent once per connection.
type InitialData struct {
	Latest  *FrameData `json:"latest,omitempty"`
	Clients int        `json:"clients"`
}

// ErrorData reports a failure to clients.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewFrameMessage wraps frame data.
func NewFrameMessage(data FrameData) WSMessage {
	return NewWSMessage(MessageTypeFrame, data)
}

// NewInitialMessage wraps the connection greeting.
func NewInitialMessage(data InitialData) WSMessage {
	return NewWSMessage(MessageTypeInitial, data)
}

// NewErrorMessage wraps an error report.
func NewErrorMessage(code, message string) WSMessage {
	return NewWSMessage(MessageTypeError, ErrorData{Code: code, Message: message})
}
