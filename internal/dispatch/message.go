package dispatch

import "github.com/google/uuid"

// MessageType tags which of the three message shapes a Message carries.
type MessageType string

const (
	// MessageFunctionInvoke calls a named function with parameters.
	MessageFunctionInvoke MessageType = "FUNCTION_INVOKE"
	// MessageReadProperty reads one or more named properties.
	MessageReadProperty MessageType = "READ_PROPERTY"
	// MessageWriteProperty writes a value to a named property.
	MessageWriteProperty MessageType = "WRITE_PROPERTY"
)

// Message is the envelope published to a device's owning gateway on its
// accept topic.
type Message struct {
	ID         string         `json:"id"`
	DeviceID   string         `json:"device_id"`
	Type       MessageType    `json:"type"`
	Function   string         `json:"function,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Properties []string       `json:"properties,omitempty"`
	Value      any            `json:"value,omitempty"`
	Headers    map[string]any `json:"headers,omitempty"`
	Async      bool           `json:"async,omitempty"`
}

// Reply is the gateway's response to a Message, written back through
// the reply bucket the Sender's semaphore wait is rendezvousing on.
type Reply struct {
	MessageID    string         `json:"message_id"`
	Success      bool           `json:"success"`
	Error        ErrorKind      `json:"error,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Output       any            `json:"output,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
}

// newMessageID generates a message ID the way the original's
// UUID-keyed reply buckets do.
func newMessageID() string {
	return uuid.NewString()
}
