package mqtt

import "fmt"

// Topic prefixes for the reference MQTT gateway.
//
// The demo gateway (cmd/gatewaydemo) bridges a flat MQTT scheme into the
// coordination plane's dispatch rendezvous: a physical device publishes
// its telemetry/replies on one set of topics and receives commands on
// another, while meshcore only ever sees dispatch.Message/dispatch.Reply
// values on the other side of the bridge.
const (
	// TopicPrefixGateway is the base for all gateway-bridge topics.
	TopicPrefixGateway = "meshcore/gateway"

	// TopicPrefixSystem is the base for system/liveness topics.
	TopicPrefixSystem = "meshcore/system"
)

// Topics provides builders for the gateway's MQTT topic names.
type Topics struct{}

// Command returns the topic the gateway publishes a device command to.
//
// Example: meshcore/gateway/command/sensor-01
func (Topics) Command(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefixGateway, deviceID)
}

// Reply returns the topic a device publishes its command reply to.
//
// Example: meshcore/gateway/reply/sensor-01
func (Topics) Reply(deviceID string) string {
	return fmt.Sprintf("%s/reply/%s", TopicPrefixGateway, deviceID)
}

// AllReplies returns a pattern matching reply topics for every device.
//
// Pattern: meshcore/gateway/reply/+
func (Topics) AllReplies() string {
	return fmt.Sprintf("%s/reply/+", TopicPrefixGateway)
}

// SystemStatus returns the topic for this gateway process's online/offline status.
//
// Example: meshcore/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
