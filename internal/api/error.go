package api

import (
	"encoding/json"
	"errors"
)

// Structured error codes the backend attaches under details.code.
const (
	CodeUnverified   = "ACCOUNT_UNVERIFIED"
	CodeUnauthorized = "UNAUTHORIZED"
)

// Error is the single normalized failure shape every gateway call
// returns. Nothing above the gateway sees a transport-specific error.
type Error struct {
	Message string          `json:"message"`
	Code    string          `json:"code,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Response is the backend envelope: {success, count, message, data}.
// Data stays raw so each call can decode its own payload type.
type Response struct {
	Success bool            `json:"success"`
	Count   int             `json:"count,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// errDetails is the structured portion of an error envelope.
type errDetails struct {
	Code string `json:"code"`
}

// ErrorFromResponse builds a normalized Error from a success:false
// envelope. The code comes from details.code; human-readable messages
// are never matched on.
func ErrorFromResponse(resp *Response) *Error {
	msg := resp.Message
	if msg == "" {
		msg = "request failed"
	}
	e := &Error{Message: msg, Details: resp.Details}
	if len(resp.Details) > 0 {
		var d errDetails
		if err := json.Unmarshal(resp.Details, &d); err == nil {
			e.Code = d.Code
		}
	}
	return e
}

// Normalize converts any error into *Error. An *Error passes through
// unchanged so codes survive wrapping.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Message: err.Error()}
}

// IsUnverified reports whether err carries the account-unverified code,
// letting callers branch into the verification-code flow.
func IsUnverified(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == CodeUnverified
}

// IsUnauthorized reports whether err is an authorization failure.
func IsUnauthorized(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == CodeUnauthorized
}
