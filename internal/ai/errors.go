package ai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sony/gobreaker"
	"google.golang.org/api/googleapi"
)

var (
	// ErrMissingCredentials means GEMINI_API_KEY is not set
	ErrMissingCredentials = errors.New("gemini API key is not configured")

	// ErrEmbeddingFailed wraps every embedding oracle failure; callers skip the chunk
	ErrEmbeddingFailed = errors.New("embedding request failed")
)

// OracleErrorKind is the coarse failure category reported to users
type OracleErrorKind string

const (
	KindAuth        OracleErrorKind = "auth"
	KindQuota       OracleErrorKind = "quota"
	KindUnavailable OracleErrorKind = "unavailable"
	KindOther       OracleErrorKind = "other"
)

// OracleError is a classified completion oracle failure
type OracleError struct {
	Kind OracleErrorKind
	Err  error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("completion oracle %s error: %v", e.Kind, e.Err)
}

func (e *OracleError) Unwrap() error {
	return e.Err
}

type httpCoder interface {
	HTTPCode() int
}

// Classify maps a raw client error onto an OracleError
func Classify(err error) *OracleError {
	if err == nil {
		return nil
	}

	var oe *OracleError
	if errors.As(err, &oe) {
		return oe
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &OracleError{Kind: KindUnavailable, Err: err}
	}

	code := 0
	var gerr *googleapi.Error
	var coder httpCoder
	switch {
	case errors.As(err, &gerr):
		code = gerr.Code
	case errors.As(err, &coder):
		code = coder.HTTPCode()
	}

	switch code {
	case 401, 403:
		return &OracleError{Kind: KindAuth, Err: err}
	case 429:
		return &OracleError{Kind: KindQuota, Err: err}
	case 503:
		return &OracleError{Kind: KindUnavailable, Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key") || strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "unauthenticated"):
		return &OracleError{Kind: KindAuth, Err: err}
	case strings.Contains(msg, "quota") || strings.Contains(msg, "billing") ||
		strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "resource_exhausted"):
		return &OracleError{Kind: KindQuota, Err: err}
	}

	return &OracleError{Kind: KindOther, Err: err}
}
