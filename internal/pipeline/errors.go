package pipeline

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why a run ended without a subclip.
type Kind string

const (
	KindUnauthenticated         Kind = "Unauthenticated"
	KindNotFound                Kind = "NotFound"
	KindLookupFailed            Kind = "LookupFailed"
	KindForbidden               Kind = "Forbidden"
	KindInvalidWindow           Kind = "InvalidWindow"
	KindOverlayGenerationFailed Kind = "OverlayGenerationFailed"
	KindTransformRequestFailed  Kind = "TransformRequestFailed"
	KindTransformTimeout        Kind = "TransformTimeout"
	KindCanceled                Kind = "Canceled"
	KindDownloadFailed          Kind = "DownloadFailed"
	KindThumbnailFailed         Kind = "ThumbnailFailed"
	KindPersistFailed           Kind = "PersistFailed"
)

var kindStatus = map[Kind]int{
	KindUnauthenticated:         http.StatusUnauthorized,
	KindNotFound:                http.StatusNotFound,
	KindLookupFailed:            http.StatusServiceUnavailable,
	KindForbidden:               http.StatusForbidden,
	KindInvalidWindow:           http.StatusBadRequest,
	KindOverlayGenerationFailed: http.StatusBadGateway,
	KindTransformRequestFailed:  http.StatusBadGateway,
	KindTransformTimeout:        http.StatusGatewayTimeout,
	KindCanceled:                http.StatusServiceUnavailable,
	KindDownloadFailed:          http.StatusBadGateway,
	KindThumbnailFailed:         http.StatusBadGateway,
	KindPersistFailed:           http.StatusInternalServerError,
}

var kindMessage = map[Kind]string{
	KindUnauthenticated:         "authentication required",
	KindNotFound:                "source media not found",
	KindLookupFailed:            "could not look up the source media, please try again",
	KindForbidden:               "you do not own this media",
	KindOverlayGenerationFailed: "could not generate the QR overlay",
	KindTransformRequestFailed:  "the video service rejected the edit request",
	KindTransformTimeout:        "the clip took too long to render, please try again",
	KindCanceled:                "the run was interrupted, please try again",
	KindDownloadFailed:          "could not retrieve the rendered clip",
	KindThumbnailFailed:         "could not generate a thumbnail",
	KindPersistFailed:           "could not save the clip",
}

// Error is the single error type returned by Run.
type Error struct {
	Kind  Kind
	Stage Stage
	// Detail is safe to show to the caller; used for validation messages.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Stage != "" {
		msg = fmt.Sprintf("%s at %s", msg, e.Stage)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus is the status code the caller should see.
func (e *Error) HTTPStatus() int {
	if status, ok := kindStatus[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Message is the human-readable text returned to the caller.
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if msg, ok := kindMessage[e.Kind]; ok {
		return msg
	}
	return "internal error"
}

// KindOf returns the Kind of a pipeline error, or "" for anything else.
func KindOf(err error) Kind {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Kind
	}
	return ""
}

func invalid(detail string) *Error {
	return &Error{Kind: KindInvalidWindow, Stage: StageValidate, Detail: detail}
}
