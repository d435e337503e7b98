package httpapi

import "errors"

var (
	errHistoryDisabled = errors.New("task history is not configured for this deployment")
)
