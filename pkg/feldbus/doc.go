// Package feldbus provides the master side of the TURAG Feldbus protocol.
package feldbus

// Feldbus is a half-duplex, addressed serial bus between one master (the
// host controller) and many slave devices. Every frame is
//
//	[address: 1 or 2 bytes][payload][checksum: 1 byte]
//
// where the checksum covers every preceding byte and is either a cumulative
// XOR or CRC-8/I-CODE, configured per device.
//
// A Device owns the framing, the retry loop and the health accounting of one
// slave. All devices sharing a Transport are attached to the same Bus, which
// serializes complete exchanges including retries.
//
// Producer: slave firmware
// Consumer: host controller
