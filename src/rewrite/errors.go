package rewrite

import (
	"context"
	"errors"
	"fmt"

	"open-rewrite/src/llm"
)

// EmptySelectionMessage is shown to the user verbatim.
const EmptySelectionMessage = "No text selected or found, please try again!"

var (
	ErrEmptySelection   = errors.New(EmptySelectionMessage)
	ErrBusy             = errors.New("rewrite: too many requests in flight, try again shortly")
	ErrEmptyInstruction = errors.New("rewrite: custom instruction is empty")
	ErrClosed           = errors.New("rewrite: orchestrator closed")
)

// MissingPromptError reports an unknown category/option pair. It is returned
// to the caller directly; no callback fires.
type MissingPromptError struct {
	Category string
	Option   string
}

func (e *MissingPromptError) Error() string {
	return fmt.Sprintf("rewrite: no prompt for %s/%s", e.Category, e.Option)
}

// ErrorKind is the user-facing failure class of an outcome.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindEmptySelection    ErrorKind = "empty_selection"
	KindMissingPrompt     ErrorKind = "missing_prompt"
	KindBusy              ErrorKind = "busy"
	KindCanceled          ErrorKind = "canceled"
	KindNetwork           ErrorKind = "network"
	KindTimeout           ErrorKind = "timeout"
	KindAuthentication    ErrorKind = "authentication"
	KindRateLimited       ErrorKind = "rate_limit"
	KindAPI               ErrorKind = "api"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindUnknown           ErrorKind = "unknown"
)

func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var missing *MissingPromptError
	switch {
	case errors.Is(err, ErrEmptySelection):
		return KindEmptySelection
	case errors.As(err, &missing):
		return KindMissingPrompt
	case errors.Is(err, ErrBusy):
		return KindBusy
	}
	switch llm.KindOf(err) {
	case llm.KindNetwork:
		return KindNetwork
	case llm.KindTimeout:
		return KindTimeout
	case llm.KindCanceled:
		return KindCanceled
	case llm.KindAuthentication:
		return KindAuthentication
	case llm.KindRateLimited:
		return KindRateLimited
	case llm.KindAPI:
		return KindAPI
	case llm.KindMalformedResponse:
		return KindMalformedResponse
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	return KindUnknown
}
