package capture

import "codeberg.org/mutker/monitorctl/internal/errors"

const (
	ErrCaptureFailed = errors.ErrorCode("capture_failed")
	ErrNoMethod      = errors.ErrorCode("capture_no_method")
	ErrDecodeFailed  = errors.ErrorCode("capture_decode_failed")
)
