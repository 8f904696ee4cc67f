package coordination

import "fmt"

// Keys builds the coordination store's key and topic schema. Centralising
// every key format here means a key can't drift between the package that
// writes it and the package that reads it — the same problem the
// teacher's mqtt.Topics{} builder solves for broker topics.
type Keys struct{}

// DeviceInfo returns the key holding a device's registration record.
func (Keys) DeviceInfo(deviceID string) string {
	return fmt.Sprintf("device:info:%s", deviceID)
}

// DeviceConfig returns the hash key holding a device's config overrides.
func (Keys) DeviceConfig(deviceID string) string {
	return fmt.Sprintf("device:cfg:%s", deviceID)
}

// ProductInfo returns the key holding a product's registration record.
func (Keys) ProductInfo(productID string) string {
	return fmt.Sprintf("product:info:%s", productID)
}

// ProductConfig returns the hash key holding a product's config.
func (Keys) ProductConfig(productID string) string {
	return fmt.Sprintf("product:cfg:%s", productID)
}

// DeviceIndex returns the hash key used as a set of all registered
// device IDs (field=deviceID, value="1"), since Store intentionally has
// no native SADD/SMEMBERS or SCAN primitive.
func (Keys) DeviceIndex() string {
	return "device:index"
}

// DeviceState returns the key holding a device's current session state
// snapshot (used for fast reads outside the DeviceInfo record).
func (Keys) DeviceState(deviceID string) string {
	return fmt.Sprintf("device:state:%s", deviceID)
}

// MessageAccept returns the topic a gateway node subscribes to in order
// to receive outbound messages addressed to devices it owns.
func (Keys) MessageAccept(serverID string) string {
	return fmt.Sprintf("device:message:accept:%s", serverID)
}

// MessageReply returns the bucket key a gateway node writes a reply to.
func (Keys) MessageReply(messageID string) string {
	return fmt.Sprintf("device:message:reply:%s", messageID)
}

// ReplySemaphore returns the semaphore key the sender waits on for a
// reply to become available.
func (Keys) ReplySemaphore(messageID string) string {
	return fmt.Sprintf("device:reply:%s", messageID)
}

// AliveCheck returns the topic used to probe whether a server process is
// still alive and responsible for the devices it claims to own.
func (Keys) AliveCheck(serverID string) string {
	return fmt.Sprintf("device:alive:check:%s", serverID)
}
