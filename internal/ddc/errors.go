package ddc

import (
	"codeberg.org/mutker/monitorctl/internal/errors"
)

const (
	// Transport errors
	ErrTransportTimeout     = errors.ErrorCode("ddc_transport_timeout")
	ErrTransportFailed      = errors.ErrorCode("ddc_transport_failed")
	ErrTransportUnavailable = errors.ErrorCode("ddc_transport_unavailable")
	ErrPermissionDenied     = errors.ErrorCode("ddc_permission_denied")
	ErrMalformedResponse    = errors.ErrorCode("ddc_malformed_response")
	ErrUnsupportedFeature   = errors.ErrorCode("ddc_unsupported_feature")

	// Detection errors
	ErrDetectFailed    = errors.ErrorCode("ddc_detect_failed")
	ErrDisplayNotFound = errors.ErrorCode("ddc_display_not_found")

	// Feature name or code not recognized
	ErrUnknownFeature = errors.ErrorCode("ddc_unknown_feature")

	// Capability errors
	ErrCapabilitiesFailed = errors.ErrorCode("ddc_capabilities_failed")
)

// IsTransient reports whether err is worth retrying: timeouts and
// malformed responses are transient, a definitive "not supported"
// reply is not.
func IsTransient(err error) bool {
	return errors.HasCode(err, ErrTransportTimeout) ||
		errors.HasCode(err, ErrMalformedResponse)
}

// IsUnsupported reports whether err marks a feature the display
// definitively does not implement
func IsUnsupported(err error) bool {
	return errors.HasCode(err, ErrUnsupportedFeature)
}
