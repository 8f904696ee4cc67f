package dispatch

import (
	"context"
	"fmt"
)

// FunctionInvokeBuilder builds a function-invocation message. Builder
// methods use pointer receivers and return the same *FunctionInvokeBuilder
// for chaining (no inheritance chain), matching the original's builder
// without its subclassing.
type FunctionInvokeBuilder struct {
	sender *Sender
	msg    Message
}

// AddParameter appends a named parameter, matching the original
// builder's addParameter (as opposed to SetParameter's overwrite
// semantics — both end up in the same map in this rendering since Go
// has no ordered-parameter-list distinction worth preserving here).
func (b *FunctionInvokeBuilder) AddParameter(name string, value any) *FunctionInvokeBuilder {
	return b.SetParameter(name, value)
}

// SetParameter sets a named parameter, overwriting any previous value.
func (b *FunctionInvokeBuilder) SetParameter(name string, value any) *FunctionInvokeBuilder {
	if b.msg.Parameters == nil {
		b.msg.Parameters = make(map[string]any)
	}
	b.msg.Parameters[name] = value
	return b
}

// Header attaches protocol- or transport-specific metadata to the
// message, separate from its function parameters.
func (b *FunctionInvokeBuilder) Header(key string, value any) *FunctionInvokeBuilder {
	if b.msg.Headers == nil {
		b.msg.Headers = make(map[string]any)
	}
	b.msg.Headers[key] = value
	return b
}

// MessageID overrides the generated message ID.
func (b *FunctionInvokeBuilder) MessageID(id string) *FunctionInvokeBuilder {
	b.msg.ID = id
	return b
}

// Custom applies an arbitrary mutation to the message being built, for
// callers that need a builder method this type doesn't expose yet.
func (b *FunctionInvokeBuilder) Custom(fn func(*Message)) *FunctionInvokeBuilder {
	fn(&b.msg)
	return b
}

// Validate reproduces the original's metadata cross-check: the function
// must exist in the device's protocol metadata, the supplied parameter
// count must match its declared inputs, every declared input must have
// a matching supplied parameter, and each supplied value must pass its
// declared ValueType's validator.
func (b *FunctionInvokeBuilder) Validate(context.Context) error {
	if b.sender.metadata == nil {
		return nil
	}
	fn, ok := b.sender.metadata.Function(b.msg.Function)
	if !ok {
		return NewReplyError(ErrFunctionUndefined, b.msg.Function)
	}
	if len(b.msg.Parameters) != len(fn.Inputs) {
		return NewReplyError(ErrIllegalArgument, fmt.Sprintf("function %s expects %d parameters, got %d", b.msg.Function, len(fn.Inputs), len(b.msg.Parameters)))
	}
	for _, input := range fn.Inputs {
		value, ok := b.msg.Parameters[input.Name]
		if !ok {
			return NewReplyError(ErrParameterUndefined, input.Name)
		}
		if input.Type != nil {
			validated, err := input.Type.Validate(value)
			if err != nil {
				return NewReplyError(ErrIllegalArgument, fmt.Sprintf("parameter %s: %v", input.Name, err))
			}
			b.msg.Parameters[input.Name] = validated
		}
	}
	return nil
}

// Send validates and sends the built message, returning the device's
// reply or a typed ReplyError.
func (b *FunctionInvokeBuilder) Send(ctx context.Context) (*Reply, error) {
	if err := b.Validate(ctx); err != nil {
		return nil, err
	}
	return b.sender.send(ctx, b.msg)
}

// Async is the fire-and-forget path: runs publish and semaphore setup
// and returns immediately with the message ID, skipping acquire/decode.
func (b *FunctionInvokeBuilder) Async(ctx context.Context) (string, error) {
	if err := b.Validate(ctx); err != nil {
		return "", err
	}
	return b.sender.Async(ctx, b.msg)
}

// ReadPropertyBuilder builds a property-read message.
type ReadPropertyBuilder struct {
	sender *Sender
	msg    Message
}

// Read adds the named properties to the read request. Calling Read
// without arguments adds nothing; the list is not expanded from the
// device's metadata.
func (b *ReadPropertyBuilder) Read(properties ...string) *ReadPropertyBuilder {
	b.msg.Properties = append(b.msg.Properties, properties...)
	return b
}

// Header attaches transport-specific metadata to the message.
func (b *ReadPropertyBuilder) Header(key string, value any) *ReadPropertyBuilder {
	if b.msg.Headers == nil {
		b.msg.Headers = make(map[string]any)
	}
	b.msg.Headers[key] = value
	return b
}

// MessageID overrides the generated message ID.
func (b *ReadPropertyBuilder) MessageID(id string) *ReadPropertyBuilder {
	b.msg.ID = id
	return b
}

// Validate checks each requested property name exists in the device's
// metadata.
func (b *ReadPropertyBuilder) Validate(context.Context) error {
	if b.sender.metadata == nil {
		return nil
	}
	for _, name := range b.msg.Properties {
		if _, ok := b.sender.metadata.Property(name); !ok {
			return NewReplyError(ErrParameterUndefined, name)
		}
	}
	return nil
}

// Send validates and sends the built message.
func (b *ReadPropertyBuilder) Send(ctx context.Context) (*Reply, error) {
	if err := b.Validate(ctx); err != nil {
		return nil, err
	}
	return b.sender.send(ctx, b.msg)
}

// Async is the fire-and-forget read path.
func (b *ReadPropertyBuilder) Async(ctx context.Context) (string, error) {
	if err := b.Validate(ctx); err != nil {
		return "", err
	}
	return b.sender.Async(ctx, b.msg)
}

// WritePropertyBuilder builds a property-write message.
type WritePropertyBuilder struct {
	sender *Sender
	msg    Message
}

// Write sets the property name and value to write. Calling it more than
// once overwrites the previous target — a WritePropertyBuilder addresses
// exactly one property per message.
func (b *WritePropertyBuilder) Write(property string, value any) *WritePropertyBuilder {
	b.msg.Properties = []string{property}
	b.msg.Value = value
	return b
}

// Header attaches transport-specific metadata to the message.
func (b *WritePropertyBuilder) Header(key string, value any) *WritePropertyBuilder {
	if b.msg.Headers == nil {
		b.msg.Headers = make(map[string]any)
	}
	b.msg.Headers[key] = value
	return b
}

// MessageID overrides the generated message ID.
func (b *WritePropertyBuilder) MessageID(id string) *WritePropertyBuilder {
	b.msg.ID = id
	return b
}

// Validate checks the target property exists in the device's metadata
// and the supplied value passes its declared ValueType's validator.
func (b *WritePropertyBuilder) Validate(context.Context) error {
	if b.sender.metadata == nil || len(b.msg.Properties) == 0 {
		return nil
	}
	name := b.msg.Properties[0]
	prop, ok := b.sender.metadata.Property(name)
	if !ok {
		return NewReplyError(ErrParameterUndefined, name)
	}
	if prop.Type != nil {
		validated, err := prop.Type.Validate(b.msg.Value)
		if err != nil {
			return NewReplyError(ErrIllegalArgument, fmt.Sprintf("property %s: %v", name, err))
		}
		b.msg.Value = validated
	}
	return nil
}

// Send validates and sends the built message.
func (b *WritePropertyBuilder) Send(ctx context.Context) (*Reply, error) {
	if err := b.Validate(ctx); err != nil {
		return nil, err
	}
	return b.sender.send(ctx, b.msg)
}

// Async is the fire-and-forget write path.
func (b *WritePropertyBuilder) Async(ctx context.Context) (string, error) {
	if err := b.Validate(ctx); err != nil {
		return "", err
	}
	return b.sender.Async(ctx, b.msg)
}
