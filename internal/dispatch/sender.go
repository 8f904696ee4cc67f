package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridwire/meshcore/internal/coordination"
	"github.com/gridwire/meshcore/internal/metadata"
)

// Logger is the minimal logging surface this package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DispatchOutcome is fed to Recorder.RecordDispatch describing one Send
// call's result.
type DispatchOutcome struct {
	DeviceID    string
	Kind        string
	Outcome     string // success, timeout, error
	ErrorKind   string
	Subscribers int
	Latency     time.Duration
}

// Recorder observes every Send outcome, the narrow interface
// internal/telemetry's Client satisfies structurally so this package
// never has to import it.
type Recorder interface {
	RecordDispatch(ctx context.Context, outcome DispatchOutcome)
}

type noopRecorder struct{}

func (noopRecorder) RecordDispatch(context.Context, DispatchOutcome) {}

// Config holds the Sender's rendezvous timing, passed explicitly rather
// than the whole application config so this package stays usable
// without depending on internal/infrastructure/config.
type Config struct {
	// MaxAwait bounds how long Send waits to acquire the reply
	// semaphore before giving up with ErrNoReply.
	MaxAwait time.Duration
	// SemaphoreGrace is added to MaxAwait when setting the reply
	// semaphore's expiry, so a slow-but-still-arriving reply isn't lost
	// to a semaphore that expired at the exact moment the wait gave up.
	SemaphoreGrace time.Duration
	// AliveCheckTimeout bounds the liveness probe CheckState performs
	// on ErrClientOffline.
	AliveCheckTimeout time.Duration
}

// DefaultConfig returns the Sender timing used when none is supplied.
func DefaultConfig() Config {
	return Config{
		MaxAwait:          30 * time.Second,
		SemaphoreGrace:    10 * time.Second,
		AliveCheckTimeout: 2 * time.Second,
	}
}

// Sender implements the Message Sender: the fluent builders' common
// send path, the rendezvous with a gateway node through the
// coordination store, and the pre-send/after-reply interceptor chain.
type Sender struct {
	store        coordination.Store
	device       Device
	metadata     metadata.DeviceMetadata
	interceptors []Interceptor
	config       Config
	logger       Logger
	recorder     Recorder
}

// NewSender returns a Sender addressing device, validating function and
// property messages against md (the device's resolved protocol
// metadata). md may be nil if the caller never needs Validate.
func NewSender(store coordination.Store, device Device, md metadata.DeviceMetadata, cfg Config, interceptors []Interceptor) *Sender {
	return &Sender{
		store:        store,
		device:       device,
		metadata:     md,
		interceptors: interceptors,
		config:       cfg,
		logger:       noopLogger{},
		recorder:     noopRecorder{},
	}
}

// SetLogger installs a logger. Not safe to call concurrently with Send.
func (s *Sender) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	s.logger = l
}

// SetRecorder installs a Recorder that observes every Send outcome. Not
// safe to call concurrently with Send.
func (s *Sender) SetRecorder(r Recorder) {
	if r == nil {
		r = noopRecorder{}
	}
	s.recorder = r
}

// InvokeFunction starts a FunctionInvokeBuilder for the named function.
func (s *Sender) InvokeFunction(function string) *FunctionInvokeBuilder {
	return &FunctionInvokeBuilder{
		sender: s,
		msg: Message{
			ID:       newMessageID(),
			DeviceID: s.device.ID(),
			Type:     MessageFunctionInvoke,
			Function: function,
		},
	}
}

// ReadProperty starts a ReadPropertyBuilder.
func (s *Sender) ReadProperty() *ReadPropertyBuilder {
	return &ReadPropertyBuilder{
		sender: s,
		msg: Message{
			ID:       newMessageID(),
			DeviceID: s.device.ID(),
			Type:     MessageReadProperty,
		},
	}
}

// WriteProperty starts a WritePropertyBuilder.
func (s *Sender) WriteProperty() *WritePropertyBuilder {
	return &WritePropertyBuilder{
		sender: s,
		msg: Message{
			ID:       newMessageID(),
			DeviceID: s.device.ID(),
			Type:     MessageWriteProperty,
		},
	}
}

// RetrieveReply is the bare bucket get-and-delete with no interceptors
// applied — a raw primitive for a caller that already holds a message
// ID obtained elsewhere (for example from Async), not a full send
// cycle.
func (s *Sender) RetrieveReply(ctx context.Context, messageID string) (*Reply, error) {
	raw, found, err := s.store.GetAndDelete(ctx, coordination.Keys{}.MessageReply(messageID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", NewReplyError(ErrCoordinationError, ""), err)
	}
	return convertReply(raw, found)
}

// Async runs the first half of send()'s rendezvous — publish and
// semaphore setup — and returns the message ID immediately without
// waiting for a reply, so the caller can RetrieveReply later.
func (s *Sender) Async(ctx context.Context, msg Message) (string, error) {
	msg.Async = true
	serverID, subscribers, err := s.publish(ctx, msg)
	if err != nil {
		return "", err
	}
	if subscribers <= 0 {
		return "", s.handleOffline(ctx)
	}
	if err := s.arm(ctx, msg.ID, subscribers); err != nil {
		return "", err
	}
	_ = serverID
	return msg.ID, nil
}

// send implements the original's 11-step algorithm. Builders call this
// after running Validate.
func (s *Sender) send(ctx context.Context, msg Message) (*Reply, error) {
	start := time.Now()
	var subscribers int
	reply, err := s.doSend(ctx, msg, &subscribers)

	outcome := DispatchOutcome{
		DeviceID:    s.device.ID(),
		Kind:        string(msg.Type),
		Subscribers: subscribers,
		Latency:     time.Since(start),
	}
	switch {
	case err == nil:
		outcome.Outcome = "success"
	default:
		var replyErr *ReplyError
		if errors.As(err, &replyErr) {
			outcome.ErrorKind = string(replyErr.Kind)
			if replyErr.Kind == ErrNoReply {
				outcome.Outcome = "timeout"
			} else {
				outcome.Outcome = "error"
			}
		} else {
			outcome.Outcome = "error"
		}
	}
	s.recorder.RecordDispatch(ctx, outcome)

	return reply, err
}

// doSend is send's body, split out so send can always record an outcome
// regardless of which step returned.
func (s *Sender) doSend(ctx context.Context, msg Message, subscribersOut *int) (*Reply, error) {
	serverID, err := s.device.ServerID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", NewReplyError(ErrCoordinationError, ""), err)
	}

	// Step 1: no owning server at all short-circuits before any
	// interceptor or publish happens.
	if serverID == "" {
		return nil, s.handleOffline(ctx)
	}

	// Step 2: pre-send interceptors.
	msg, err = s.runPreSend(ctx, msg)
	if err != nil {
		return nil, err
	}

	// Steps 3-5: publish, check subscriber count.
	_, subscribers, err := s.publish(ctx, msg)
	if err != nil {
		return nil, err
	}
	*subscribersOut = int(subscribers)
	if subscribers <= 0 {
		return nil, s.handleOffline(ctx)
	}
	if subscribers > 1 {
		s.logger.Warn("multiple subscribers on device accept topic", "device_id", s.device.ID(), "subscribers", subscribers)
	}

	// Step 6: create and size the reply semaphore.
	if err := s.arm(ctx, msg.ID, subscribers); err != nil {
		return nil, err
	}

	// Step 7: acquire, regardless of outcome always continue to
	// steps 8-9 so the bucket and semaphore are cleaned up on every
	// exit path.
	acquireErr := s.store.TryAcquireSemaphore(ctx, coordination.Keys{}.ReplySemaphore(msg.ID), subscribers, s.config.MaxAwait)

	raw, found, getErr := s.store.GetAndDelete(ctx, coordination.Keys{}.MessageReply(msg.ID))

	if delErr := s.store.DeleteSemaphore(ctx, coordination.Keys{}.ReplySemaphore(msg.ID)); delErr != nil {
		s.logger.Warn("deleting reply semaphore", "message_id", msg.ID, "error", delErr)
	}

	if getErr != nil {
		return nil, fmt.Errorf("%w: %v", NewReplyError(ErrCoordinationError, ""), getErr)
	}
	if acquireErr != nil && !found {
		return nil, NewReplyError(ErrNoReply, "")
	}

	// Step 10: convert and run after-reply interceptors.
	reply, err := convertReply(raw, found)
	if err != nil {
		return nil, err
	}
	return s.runAfterReply(ctx, msg, reply)
}

// publish sends msg to the device's current owning server's accept
// topic and returns that serverID and the subscriber count Publish
// reported.
func (s *Sender) publish(ctx context.Context, msg Message) (serverID string, subscribers int64, err error) {
	serverID, err = s.device.ServerID(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", NewReplyError(ErrCoordinationError, ""), err)
	}
	if serverID == "" {
		return "", 0, nil
	}
	encoded, err := encodeMessage(msg)
	if err != nil {
		return "", 0, err
	}
	subscribers, err = s.store.Publish(ctx, coordination.Keys{}.MessageAccept(serverID), encoded)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", NewReplyError(ErrCoordinationError, ""), err)
	}
	return serverID, subscribers, nil
}

// arm creates the reply semaphore empty (0 permits) and sets its expiry
// to cover the full wait plus grace. Each of the subscribers gateway
// replicas calls ReleaseSemaphore once it replies, so the waiter's
// TryAcquireSemaphore(subscribers) only succeeds once every replica has
// released — the semaphore counts replies received, not permits handed
// out up front.
func (s *Sender) arm(ctx context.Context, messageID string, subscribers int64) error {
	key := coordination.Keys{}.ReplySemaphore(messageID)
	if err := s.store.CreateSemaphore(ctx, key, 0); err != nil {
		return fmt.Errorf("%w: %v", NewReplyError(ErrCoordinationError, ""), err)
	}
	if err := s.store.ExpireSemaphore(ctx, key, s.config.MaxAwait+s.config.SemaphoreGrace); err != nil {
		return fmt.Errorf("%w: %v", NewReplyError(ErrCoordinationError, ""), err)
	}
	return nil
}

// handleOffline runs CheckState's liveness reconciliation and always
// resolves to ErrClientOffline, matching the original's behaviour of
// triggering a check as a side effect of a failed send rather than
// returning its result directly.
func (s *Sender) handleOffline(ctx context.Context) error {
	if _, err := s.device.CheckOnline(ctx, s.config.AliveCheckTimeout); err != nil {
		s.logger.Warn("checking device liveness after offline send", "device_id", s.device.ID(), "error", err)
	}
	return NewReplyError(ErrClientOffline, "")
}

func (s *Sender) runPreSend(ctx context.Context, msg Message) (Message, error) {
	for _, in := range s.interceptors {
		var err error
		msg, err = in.PreSend(ctx, s.device, msg)
		if err != nil {
			return msg, err
		}
	}
	return msg, nil
}

func (s *Sender) runAfterReply(ctx context.Context, msg Message, reply *Reply) (*Reply, error) {
	for _, in := range s.interceptors {
		var err error
		reply, err = in.AfterReply(ctx, s.device, msg, reply)
		if err != nil {
			return nil, err
		}
	}
	return reply, nil
}
