// Package mqtt provides MQTT client connectivity for the dorm power backend.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The backend uses MQTT as the message bus connecting it to the networked
// power strips in each room. The broker decouples the backend from
// device firmware specifics.
//
//	Backend ↔ MQTT Broker ↔ Power Strips
//
// Devices publish on two topic shapes, both handled:
//
//	{prefix}/{deviceId}/{kind}
//	{prefix}/{room}/{device}/{kind}
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
//   - Reconnect: Exponential backoff 1s-60s
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
//	// Subscribe to all single-segment status updates
//	err = client.Subscribe(mqtt.Topics{}.SingleSegmentPattern(mqtt.KindStatus), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a command
//	topic := mqtt.Topics{}.DeviceCommand("A-302-strip01")
//	client.Publish(topic, []byte(`{"type":"SWITCH","socketId":1}`), 1, false)
package mqtt
