package dispatch

import "errors"

// ErrorKind classifies why a Send failed to produce a successful reply.
// Reply.Error (when non-empty) is always one of these constants encoded
// as a string, so the same taxonomy crosses the Reply JSON boundary.
type ErrorKind string

const (
	// ErrClientOffline means the target device has no owning gateway
	// (ServerID == "") or nobody was subscribed on its accept topic.
	ErrClientOffline ErrorKind = "CLIENT_OFFLINE"
	// ErrNoReply means the gateway acknowledged the message but never
	// wrote a reply before the semaphore wait expired.
	ErrNoReply ErrorKind = "NO_REPLY"
	// ErrUnsupportedMessage means the reply payload could not be decoded
	// as a Reply.
	ErrUnsupportedMessage ErrorKind = "UNSUPPORTED_MESSAGE"
	// ErrSystemError means an unexpected coordination store error
	// occurred during send.
	ErrSystemError ErrorKind = "SYSTEM_ERROR"
	// ErrFunctionUndefined means the target function isn't present in
	// the device's protocol metadata.
	ErrFunctionUndefined ErrorKind = "FUNCTION_UNDEFINED"
	// ErrParameterUndefined means a function's declared input has no
	// supplied parameter, or a property name isn't declared in the
	// device's metadata.
	ErrParameterUndefined ErrorKind = "PARAMETER_UNDEFINED"
	// ErrIllegalArgument means a supplied parameter count or value
	// failed metadata validation.
	ErrIllegalArgument ErrorKind = "ILLEGAL_ARGUMENT"
	// ErrProductNotFound means the device's product record is missing.
	ErrProductNotFound ErrorKind = "PRODUCT_NOT_FOUND"
	// ErrProtocolNotFound means the product's protocol has no
	// registered metadata.
	ErrProtocolNotFound ErrorKind = "PROTOCOL_NOT_FOUND"
	// ErrDeviceNotFound means the target device is not registered.
	ErrDeviceNotFound ErrorKind = "DEVICE_NOT_FOUND"
	// ErrCoordinationError means the underlying coordination store
	// itself failed (connection loss, Lua script failure, etc).
	ErrCoordinationError ErrorKind = "COORDINATION_ERROR"
)

// ReplyError is the typed error carrying one of the ErrorKind
// constants. Send returns it as its error value, with a nil *Reply;
// a reply whose encoded Error field is set is converted into one.
// Callers recover the kind with errors.As or match it with errors.Is.
type ReplyError struct {
	Kind    ErrorKind
	Message string
}

func (e *ReplyError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

// Is lets errors.Is(err, dispatch.NewReplyError(dispatch.ErrClientOffline, ""))
// match any ReplyError of the same Kind, ignoring Message.
func (e *ReplyError) Is(target error) bool {
	var other *ReplyError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// NewReplyError constructs a ReplyError of the given kind.
func NewReplyError(kind ErrorKind, message string) *ReplyError {
	return &ReplyError{Kind: kind, Message: message}
}
