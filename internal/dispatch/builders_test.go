package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gridwire/meshcore/internal/dispatch"
	"github.com/gridwire/meshcore/internal/metadata"
)

func testMetadata() *metadata.StaticDeviceMetadata {
	return &metadata.StaticDeviceMetadata{
		Functions: map[string]metadata.FunctionMetadata{
			"setBrightness": {
				Name: "setBrightness",
				Inputs: []metadata.PropertyMetadata{
					{Name: "level", Type: metadata.NumberType{}},
				},
			},
		},
		Properties: map[string]metadata.PropertyMetadata{
			"brightness": {Name: "brightness", Type: metadata.NumberType{}},
		},
	}
}

// TestFunctionInvokeBuilder_Validate mirrors the original's metadata
// cross-check: an undeclared function, a missing parameter, and a
// value that fails its declared type all fail before Send ever
// publishes.
func TestFunctionInvokeBuilder_Validate(t *testing.T) {
	ctx := context.Background()
	op, store := newTestOperation(t, "", "")
	sender := dispatch.NewSender(store, op, testMetadata(), testConfig(), nil)

	if _, err := sender.InvokeFunction("missing").Send(ctx); !errors.Is(err, dispatch.NewReplyError(dispatch.ErrFunctionUndefined, "")) {
		t.Fatalf("undeclared function error = %v, want ErrFunctionUndefined", err)
	}

	if _, err := sender.InvokeFunction("setBrightness").Send(ctx); !errors.Is(err, dispatch.NewReplyError(dispatch.ErrIllegalArgument, "")) {
		t.Fatalf("missing parameter count error = %v, want ErrIllegalArgument", err)
	}

	if _, err := sender.InvokeFunction("setBrightness").SetParameter("level", "bright").Send(ctx); !errors.Is(err, dispatch.NewReplyError(dispatch.ErrIllegalArgument, "")) {
		t.Fatalf("bad value type error = %v, want ErrIllegalArgument", err)
	}
}

// TestReadPropertyBuilder_Validate checks an unknown property name is
// rejected before Send.
func TestReadPropertyBuilder_Validate(t *testing.T) {
	ctx := context.Background()
	op, store := newTestOperation(t, "", "")
	sender := dispatch.NewSender(store, op, testMetadata(), testConfig(), nil)

	if _, err := sender.ReadProperty().Read("nonexistent").Send(ctx); !errors.Is(err, dispatch.NewReplyError(dispatch.ErrParameterUndefined, "")) {
		t.Fatalf("unknown property error = %v, want ErrParameterUndefined", err)
	}
}

// TestWritePropertyBuilder_Validate checks the write path validates the
// target property and coerces its value the same way the function
// invoke path does.
func TestWritePropertyBuilder_Validate(t *testing.T) {
	ctx := context.Background()
	op, store := newTestOperation(t, "", "")
	sender := dispatch.NewSender(store, op, testMetadata(), testConfig(), nil)

	if _, err := sender.WriteProperty().Write("nonexistent", 1).Send(ctx); !errors.Is(err, dispatch.NewReplyError(dispatch.ErrParameterUndefined, "")) {
		t.Fatalf("unknown property error = %v, want ErrParameterUndefined", err)
	}

	if _, err := sender.WriteProperty().Write("brightness", "bright").Send(ctx); !errors.Is(err, dispatch.NewReplyError(dispatch.ErrIllegalArgument, "")) {
		t.Fatalf("bad value type error = %v, want ErrIllegalArgument", err)
	}
}
