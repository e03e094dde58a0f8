package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
)

// Kind classifies a completion failure.
type Kind string

const (
	KindNetwork           Kind = "network"
	KindTimeout           Kind = "timeout"
	KindCanceled          Kind = "canceled"
	KindAuthentication    Kind = "authentication"
	KindRateLimited       Kind = "rate_limit"
	KindAPI               Kind = "api"
	KindMalformedResponse Kind = "malformed_response"
)

// Sentinels for errors.Is; they match any *Error of the same Kind.
var (
	ErrNetwork           = &Error{Kind: KindNetwork}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrCanceled          = &Error{Kind: KindCanceled}
	ErrAuthentication    = &Error{Kind: KindAuthentication}
	ErrRateLimited       = &Error{Kind: KindRateLimited}
	ErrAPI               = &Error{Kind: KindAPI}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
)

type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return "llm: " + string(e.Kind)
	case e.StatusCode != 0:
		return fmt.Sprintf("llm: %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("llm: %s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &Error{Kind: kindForStatus(apiErr.StatusCode), StatusCode: apiErr.StatusCode, Err: err}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCanceled, Err: err}
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return &Error{Kind: KindMalformedResponse, Err: err}
	}
	return &Error{Kind: KindNetwork, Err: err}
}

func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuthentication
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindAPI
	}
}
