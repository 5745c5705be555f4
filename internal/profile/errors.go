package profile

import "codeberg.org/mutker/monitorctl/internal/errors"

const (
	ErrInvalidPattern = errors.ErrorCode("profile_invalid_pattern")
)
