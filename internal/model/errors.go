package model

import "fmt"

type ErrorCode string

const (
	CodePrivate            ErrorCode = "PRIVATE"
	CodeGeoBlock           ErrorCode = "GEO_BLOCK"
	CodeAgeGate            ErrorCode = "AGE_GATE"
	CodeAuthRequired       ErrorCode = "AUTH_REQUIRED"
	CodeContentUnavailable ErrorCode = "CONTENT_UNAVAILABLE"
	CodeVideoUnavailable   ErrorCode = "VIDEO_UNAVAILABLE"
	CodeNetwork            ErrorCode = "NETWORK"
	CodeFFmpegMissing      ErrorCode = "FFMPEG_MISSING"
	CodeNoSpace            ErrorCode = "NO_SPACE"
	CodeUnknown            ErrorCode = "UNKNOWN"
)

// DownloadError is the structured failure reported for engine and
// transcoder problems. Message is free of terminal escape sequences.
type DownloadError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"`
}

func (e *DownloadError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Hint)
}

// Retryable reports whether trying the same task again later may succeed.
func (e *DownloadError) Retryable() bool {
	switch e.Code {
	case CodeNetwork, CodeUnknown:
		return true
	default:
		return false
	}
}
