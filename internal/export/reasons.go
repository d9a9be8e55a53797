package export

import (
	"errors"
	"io/fs"
)

// FailureReason classifies one date's export failure.
type FailureReason string

const (
	ReasonNoVaultSelected   FailureReason = "no_vault_selected"
	ReasonNoHealthData      FailureReason = "no_health_data"
	ReasonAccessDenied      FailureReason = "access_denied"
	ReasonDeviceLocked      FailureReason = "device_locked"
	ReasonSourceUnavailable FailureReason = "source_unavailable"
	ReasonFileWrite         FailureReason = "file_write_error"
	ReasonUnknown           FailureReason = "unknown"
)

// Description is the human-readable form used in notifications.
func (r FailureReason) Description() string {
	switch r {
	case ReasonNoVaultSelected:
		return "no export destination selected"
	case ReasonNoHealthData:
		return "no health data for that day"
	case ReasonAccessDenied:
		return "access to the destination was denied"
	case ReasonDeviceLocked:
		return "the device was locked"
	case ReasonSourceUnavailable:
		return "the health data source was unavailable"
	case ReasonFileWrite:
		return "writing the file failed"
	default:
		return "an unknown error occurred"
	}
}

// Sentinel errors collaborators return so failures classify cleanly.
var (
	ErrNoVaultSelected   = errors.New("export: no vault selected")
	ErrNoHealthData      = errors.New("export: no health data")
	ErrAccessDenied      = errors.New("export: access denied")
	ErrDeviceLocked      = errors.New("export: device locked")
	ErrSourceUnavailable = errors.New("export: health source unavailable")
)

func classifyFetch(err error) FailureReason {
	switch {
	case errors.Is(err, ErrNoVaultSelected):
		return ReasonNoVaultSelected
	case errors.Is(err, ErrNoHealthData):
		return ReasonNoHealthData
	case errors.Is(err, ErrAccessDenied), errors.Is(err, fs.ErrPermission):
		return ReasonAccessDenied
	case errors.Is(err, ErrDeviceLocked):
		return ReasonDeviceLocked
	case errors.Is(err, ErrSourceUnavailable):
		return ReasonSourceUnavailable
	default:
		return ReasonUnknown
	}
}

func classifyWrite(err error) FailureReason {
	switch {
	case errors.Is(err, ErrNoVaultSelected):
		return ReasonNoVaultSelected
	case errors.Is(err, ErrAccessDenied), errors.Is(err, fs.ErrPermission):
		return ReasonAccessDenied
	case errors.Is(err, ErrDeviceLocked):
		return ReasonDeviceLocked
	default:
		return ReasonFileWrite
	}
}
