// Command gatewaydemo is a sample consumer of meshcore's public
// dispatch.Handler API: it bridges a real MQTT broker to the
// coordination plane, proving the gateway boundary works without
// putting any wire-codec logic inside internal/.
//
// It owns one serverID (cfg.Node.ServerID) and claims every device
// configured for this demo online under that ID. Messages addressed to
// those devices arrive on the accept topic via dispatch.Handler.Subscribe;
// this process translates each into an MQTT command publish, and
// translates MQTT replies back into dispatch.Handler.Reply calls,
// completing the rendezvous a Message Sender is waiting on.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gridwire/meshcore/internal/coordination"
	"github.com/gridwire/meshcore/internal/device"
	"github.com/gridwire/meshcore/internal/dispatch"
	"github.com/gridwire/meshcore/internal/infrastructure/config"
	"github.com/gridwire/meshcore/internal/infrastructure/logging"
	"github.com/gridwire/meshcore/internal/infrastructure/mqtt"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/gatewaydemo.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting gatewaydemo", "version", version, "commit", commit, "build_date", date)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "server_id", cfg.Node.ServerID)

	log = logging.New(cfg.Logging, version)

	store, err := coordination.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to coordination store: %w", err)
	}
	store.SetLogger(log)
	defer func() {
		log.Info("closing coordination store")
		if closeErr := store.Close(); closeErr != nil {
			log.Error("error closing coordination store", "error", closeErr)
		}
	}()

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	mqttClient.SetLogger(log)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected", "broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port))

	deviceRepo := device.NewCoordinationRepository(store)
	deviceRegistry := device.NewRegistry(deviceRepo, store)
	deviceRegistry.SetLogger(log)
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}

	handler := dispatch.NewHandler(store, dispatch.Config{
		MaxAwait:          cfg.Dispatch.MaxAwaitDuration(),
		SemaphoreGrace:    cfg.Dispatch.SemaphoreExpiry() - cfg.Dispatch.MaxAwaitDuration(),
		AliveCheckTimeout: cfg.Dispatch.AliveCheckTimeout(),
	})
	handler.SetLogger(log)

	bridge := &gatewayBridge{
		handler: handler,
		mqtt:    mqttClient,
		logger:  log,
	}

	sub, err := handler.Subscribe(ctx, cfg.Node.ServerID, bridge.onMessage)
	if err != nil {
		return fmt.Errorf("subscribing to accept topic: %w", err)
	}
	defer func() {
		if closeErr := sub.Close(); closeErr != nil {
			log.Error("error closing accept subscription", "error", closeErr)
		}
	}()

	if subErr := mqttClient.Subscribe(mqtt.Topics{}.AllReplies(), byte(cfg.MQTT.QoS), bridge.onReply); subErr != nil {
		return fmt.Errorf("subscribing to device replies: %w", subErr)
	}

	sessionID := cfg.Node.ServerID + "-session"
	claimed := claimConfiguredDevicesOnline(ctx, deviceRegistry, cfg.Node.ServerID, sessionID, log)
	defer releaseClaimedDevices(context.Background(), deviceRegistry, claimed, sessionID, log)

	log.Info("gatewaydemo ready", "server_id", cfg.Node.ServerID, "devices_claimed", len(claimed))

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// gatewayBridge translates between dispatch.Message/dispatch.Reply and
// the demo MQTT wire format, the only place in this binary that ever
// touches both vocabularies.
type gatewayBridge struct {
	handler *dispatch.Handler
	mqtt    *mqtt.Client
	logger  *logging.Logger
}

// onMessage is invoked for every dispatch.Message addressed to a device
// this gateway owns. It republishes the message unchanged on the
// device's MQTT command topic.
func (b *gatewayBridge) onMessage(ctx context.Context, msg dispatch.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("encoding outbound command", "message_id", msg.ID, "error", err)
		return
	}
	topic := mqtt.Topics{}.Command(msg.DeviceID)
	if pubErr := b.mqtt.Publish(topic, payload, 1, false); pubErr != nil {
		b.logger.Error("publishing command", "topic", topic, "message_id", msg.ID, "error", pubErr)
		return
	}
	if msg.Async {
		if markErr := b.handler.MarkMessageAsync(ctx, msg.ID); markErr != nil {
			b.logger.Warn("marking message async", "message_id", msg.ID, "error", markErr)
		}
	}
}

// onReply is invoked by the MQTT client for every message on the
// device-reply wildcard subscription. The payload decodes directly into
// a dispatch.Reply — device firmware in this demo speaks the same
// vocabulary the gateway does, so there is no further translation.
func (b *gatewayBridge) onReply(topic string, payload []byte) error {
	var reply dispatch.Reply
	if err := json.Unmarshal(payload, &reply); err != nil {
		return fmt.Errorf("decoding reply on %s: %w", topic, err)
	}
	if reply.MessageID == "" {
		return fmt.Errorf("reply on %s missing message_id", topic)
	}
	return b.handler.Reply(context.Background(), reply.MessageID, &reply)
}

// claimConfiguredDevicesOnline marks every device already registered in
// the coordination plane online under this gateway's server/session ID.
// A production gateway would claim sessions as physical devices
// announce themselves; this demo claims everything it already knows
// about at startup, since there is no real device announcement channel
// to listen on.
func claimConfiguredDevicesOnline(ctx context.Context, registry *device.Registry, serverID, sessionID string, log *logging.Logger) []string {
	devices, err := registry.ListDevices(ctx)
	if err != nil {
		log.Error("listing devices to claim online", "error", err)
		return nil
	}

	claimed := make([]string, 0, len(devices))
	for _, d := range devices {
		op := registry.Operation(d.ID, nil)
		if onlineErr := op.Online(ctx, serverID, sessionID); onlineErr != nil {
			log.Warn("claiming device online", "device_id", d.ID, "error", onlineErr)
			continue
		}
		claimed = append(claimed, d.ID)
	}
	return claimed
}

func releaseClaimedDevices(ctx context.Context, registry *device.Registry, ids []string, sessionID string, log *logging.Logger) {
	for _, id := range ids {
		op := registry.Operation(id, nil)
		if err := op.OfflineSession(ctx, sessionID); err != nil {
			log.Warn("releasing device session", "device_id", id, "error", err)
		}
	}
}

// getConfigPath returns the configuration file path, honouring
// MESHCORE_GATEWAYDEMO_CONFIG if set.
func getConfigPath() string {
	if path := os.Getenv("MESHCORE_GATEWAYDEMO_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

