package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gridwire/meshcore/internal/device"
	"github.com/gridwire/meshcore/internal/dispatch"
)

// handleListDevices returns all registered devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.deviceRegistry.ListDevices(r.Context())
	if err != nil {
		s.logger.Error("failed to list devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.deviceRegistry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// deviceStats is the coarse registry-wide summary handleDeviceStats
// returns: a total count and a breakdown by session state.
type deviceStats struct {
	Total   int            `json:"total"`
	ByState map[string]int `json:"by_state"`
}

// handleDeviceStats returns device registry statistics.
func (s *Server) handleDeviceStats(w http.ResponseWriter, r *http.Request) {
	devices, err := s.deviceRegistry.ListDevices(r.Context())
	if err != nil {
		s.logger.Error("failed to compute device stats", "error", err)
		writeInternalError(w, "failed to compute device stats")
		return
	}

	stats := deviceStats{Total: len(devices), ByState: map[string]int{}}
	for _, d := range devices {
		stats.ByState[d.State.String()]++
	}
	writeJSON(w, http.StatusOK, stats)
}

// invokeRequest is the body of POST /api/v1/devices/{id}/invoke.
type invokeRequest struct {
	// Kind selects the builder: function_invoke, read_property, or write_property.
	Kind string `json:"kind"`
	// Function is required for function_invoke.
	Function string `json:"function,omitempty"`
	// Parameters are the function's named arguments for function_invoke.
	Parameters map[string]any `json:"parameters,omitempty"`
	// Properties names the properties to read for read_property.
	Properties []string `json:"properties,omitempty"`
	// Property and Value are used by write_property.
	Property string `json:"property,omitempty"`
	Value    any    `json:"value,omitempty"`
	// TimeoutSeconds overrides the configured MaxAwait for this call, if positive.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// handleInvokeDevice drives a real Message Sender round trip against a
// device: it resolves the device's product metadata, builds the
// requested message via the fluent builders, and waits for the
// gateway's reply the same way a production caller would.
func (s *Server) handleInvokeDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev, err := s.deviceRegistry.GetDevice(ctx, id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	if s.productRegistry == nil {
		writeInternalError(w, "product registry not configured")
		return
	}
	product, err := s.productRegistry.Get(ctx, dev.ProductID)
	if err != nil {
		writeInternalError(w, "failed to resolve product")
		return
	}
	md, err := product.Metadata(ctx)
	if err != nil {
		writeInternalError(w, "failed to resolve device metadata")
		return
	}
	productConfig := product.Config()

	op := s.deviceRegistry.Operation(id, productConfig)

	cfg := s.dispatchConfig
	if req.TimeoutSeconds > 0 {
		cfg.MaxAwait = time.Duration(req.TimeoutSeconds) * time.Second
	}
	sender := op.Sender(md, cfg, s.interceptors)
	if s.recorder != nil {
		sender.SetRecorder(s.recorder)
	}

	reply, sendErr := s.dispatch(ctx, sender, req)

	s.auditLog("invoke", "device", id, "", map[string]any{
		"kind": req.Kind,
	})

	if sendErr != nil {
		var replyErr *dispatch.ReplyError
		if errors.As(sendErr, &replyErr) {
			writeJSON(w, http.StatusOK, map[string]any{
				"success": false,
				"error":   replyErr.Kind,
				"message": replyErr.Message,
			})
			return
		}
		writeInternalError(w, "invoke failed")
		return
	}

	s.hub.Broadcast(Event{Type: "dispatch.reply", DeviceID: id, Payload: reply})
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) dispatch(ctx context.Context, sender *dispatch.Sender, req invokeRequest) (*dispatch.Reply, error) {
	switch req.Kind {
	case "read_property":
		builder := sender.ReadProperty()
		for _, p := range req.Properties {
			builder = builder.Read(p)
		}
		return builder.Send(ctx)
	case "write_property":
		return sender.WriteProperty().Write(req.Property, req.Value).Send(ctx)
	default:
		builder := sender.InvokeFunction(req.Function)
		for name, value := range req.Parameters {
			builder = builder.SetParameter(name, value)
		}
		return builder.Send(ctx)
	}
}
