package httpserver

import (
	"net/http"
)

type ErrorCode string

const (
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeChatNotFound      ErrorCode = "CHAT_NOT_FOUND"
	ErrCodeUserNotFound      ErrorCode = "USER_NOT_FOUND"
	ErrCodeUploadMissingFile ErrorCode = "UPLOAD_MISSING_FILE"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeMethodNotAllowed  ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
)

var errorHTTPStatus = map[ErrorCode]int{
	ErrCodeValidation:        http.StatusBadRequest,
	ErrCodeChatNotFound:      http.StatusNotFound,
	ErrCodeUserNotFound:      http.StatusNotFound,
	ErrCodeUploadMissingFile: http.StatusBadRequest,
	ErrCodeInternal:          http.StatusInternalServerError,
	ErrCodeMethodNotAllowed:  http.StatusMethodNotAllowed,
	ErrCodeNotFound:          http.StatusNotFound,
}

func httpStatusForCode(code ErrorCode) int {
	if status, ok := errorHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
