package display

import "codeberg.org/mutker/monitorctl/internal/errors"

const (
	ErrDetectFailed       = errors.ErrorCode("display_detect_failed")
	ErrGeometryQuery      = errors.ErrorCode("display_geometry_query_failed")
	ErrGeometryUnresolved = errors.ErrorCode("display_geometry_unresolved")
)
