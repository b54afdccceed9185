package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrUnauthorized is wrapped by errors for 401 responses.
var ErrUnauthorized = errors.New("unauthorized")

// Error is a backend failure in a form fit to show to the user.
type Error struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Cause     error  `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Message extracts the user-facing text from err, or fallback when err is not
// an *Error.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func mapTransportError(err error, fallback, requestID string) error {
	return &Error{Code: "BACKEND_UNREACHABLE", Message: fallback, RequestID: requestID, Cause: err}
}

// mapResponseError classifies a non-2xx response. The message comes from
// the body's "detail" field: a string, or a validation list whose "msg"
// entries are joined.
func mapResponseError(status int, body []byte, fallback, requestID string) error {
	e := &Error{Status: status, Message: detailMessage(body, fallback), RequestID: requestID}
	switch {
	case status == http.StatusUnauthorized:
		e.Code = "UNAUTHORIZED"
		e.Cause = ErrUnauthorized
	case status == http.StatusBadRequest:
		e.Code = "BAD_REQUEST"
	case status == http.StatusUnprocessableEntity:
		e.Code = "VALIDATION_FAILED"
	case status >= 500:
		e.Code = "BACKEND_ERROR"
	default:
		e.Code = "HTTP_" + strconv.Itoa(status)
	}
	return e
}

func detailMessage(body []byte, fallback string) string {
	if !gjson.ValidBytes(body) {
		return fallback
	}
	detail := gjson.GetBytes(body, "detail")
	switch {
	case detail.Type == gjson.String && strings.TrimSpace(detail.String()) != "":
		return detail.String()
	case detail.IsArray():
		var msgs []string
		for _, item := range detail.Array() {
			if msg := item.Get("msg").String(); msg != "" {
				msgs = append(msgs, msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return fallback
}
