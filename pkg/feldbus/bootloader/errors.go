package bootloader

// ErrorCode is the outcome of a bootloader operation.
type ErrorCode int

// Error codes.
const (
	Success ErrorCode = iota
	InvalidSize
	InvalidAddress
	ContentMismatch
	Unsupported
	InvalidArgs
	TransceiveError
	PreconditionsNotMet
)

var errorCodeNames = [...]string{
	Success:             "success",
	InvalidSize:         "invalid size",
	InvalidAddress:      "invalid address",
	ContentMismatch:     "content mismatch",
	Unsupported:         "unsupported",
	InvalidArgs:         "invalid arguments",
	TransceiveError:     "transceive error",
	PreconditionsNotMet: "preconditions not met",
}

// String implements fmt.Stringer.
func (c ErrorCode) String() string {
	if c >= 0 && int(c) < len(errorCodeNames) {
		return errorCodeNames[c]
	}
	return "unknown error"
}

// Error implements error.
func (c ErrorCode) Error() string {
	return "bootloader: " + c.String()
}

// Err converts the code into an error, nil for Success.
func (c ErrorCode) Err() error {
	if c == Success {
		return nil
	}
	return c
}

// status bytes replied by the device.
const (
	statusSuccess         byte = 0
	statusInvalidSize     byte = 1
	statusInvalidAddress  byte = 2
	statusContentMismatch byte = 3
	statusUnsupported     byte = 4
)

func statusCode(status byte) ErrorCode {
	switch status {
	case statusSuccess:
		return Success
	case statusInvalidSize:
		return InvalidSize
	case statusInvalidAddress:
		return InvalidAddress
	case statusContentMismatch:
		return ContentMismatch
	}
	return Unsupported
}
