package session

import (
	"codeberg.org/mutker/monitorctl/internal/errors"
)

const (
	ErrUnknownProfile = errors.ErrorCode("session_unknown_profile")
)
