// Package bridge connects the MQTT bus to the domain.
//
// Inbound topics resolve to device identities: the last segment names
// the message kind, and the segments between the prefix and the kind
// form the device id, with room/device pairs joined by a space. Status,
// telemetry, offline and ack messages feed the device tracker, the
// sample store and the command ledger; each handled message produces an
// event that a bounded fan-out queue delivers to websocket subscribers
// without ever blocking the bus callback.
//
// Commands flow the other way: PublishCommand sends a payload on every
// topic shape the device's identity supports.
package bridge
