// Package mqtt provides MQTT client connectivity for the reference gateway
// binary (cmd/gatewaydemo).
//
// This package manages:
//   - Connection to a Mosquitto-compatible broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// meshcore's core library never imports this package — it is used solely
// by the demo gateway to bridge a real MQTT broker (where physical devices
// publish replies and receive commands) onto the coordination plane's
// dispatch.Handler, demonstrating the out-of-scope gateway boundary without
// putting wire-codec logic inside internal/dispatch.
//
//	Physical device ↔ MQTT Broker ↔ cmd/gatewaydemo ↔ dispatch.Handler
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to every device's reply topic
//	err = client.Subscribe(mqtt.Topics{}.AllReplies(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a command to one device
//	topic := mqtt.Topics{}.Command("sensor-01")
//	client.Publish(topic, []byte(`{"on":true}`), 1, false)
package mqtt
