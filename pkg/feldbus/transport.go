package feldbus

// Status is the outcome of one transport exchange.
type Status int

const (
	// StatusSuccess means the complete reply was received and verified.
	StatusSuccess Status = iota
	// StatusTransmissionError means sending or receiving was incomplete.
	StatusTransmissionError
	// StatusChecksumError means a complete reply failed verification.
	StatusChecksumError
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusTransmissionError:
		return "transmission error"
	case StatusChecksumError:
		return "checksum error"
	}
	return "unknown"
}

// Transport moves raw frames over the physical medium.
type Transport interface {
	// Transceive sends tx and, if rx is not empty, receives exactly len(rx)
	// bytes into rx and verifies them with checksum. It returns the number of
	// bytes sent and received.
	Transceive(tx, rx []byte, address uint16, checksum ChecksumType) (sent, received int, status Status)
	// ClearBuffer discards pending received bytes.
	ClearBuffer()
}
