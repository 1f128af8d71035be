package scale

import "github.com/pkg/errors"

// Sentinel errors of the BLE scale layer. Radio / permission / hardware
// failures are caught at the BLE call site and downgraded to logged results
// carrying one of these; they never escape as panics.
var (
	ErrPermissionDenied       = errors.New("bluetooth permissions not granted")
	ErrRadioDisabled          = errors.New("bluetooth radio disabled")
	ErrAlreadyInProgress      = errors.New("operation already in progress")
	ErrScanFailure            = errors.New("scan failed")
	ErrConnectTimeout         = errors.New("connection attempt timed out")
	ErrServiceDiscovery       = errors.New("service discovery failed")
	ErrCharacteristicNotFound = errors.New("expected characteristic not found")
	ErrWriteFailed            = errors.New("characteristic write failed")
	ErrNotSupported           = errors.New("operation not supported by device")
	ErrNotConnected           = errors.New("no active connection")
)
