package wintrack

import "codeberg.org/mutker/monitorctl/internal/errors"

const (
	ErrBackendUnavailable = errors.ErrorCode("wintrack_backend_unavailable")
	ErrQueryFailed        = errors.ErrorCode("wintrack_query_failed")
	ErrParseFailed        = errors.ErrorCode("wintrack_parse_failed")
)
