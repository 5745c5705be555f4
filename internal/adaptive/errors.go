package adaptive

import "codeberg.org/mutker/monitorctl/internal/errors"

const (
	ErrDisabled = errors.ErrorCode("adaptive_disabled")
)
