// Package errors provides the client's user-facing error vocabulary.
//
// The central server and publisher endpoints answer with short response codes.
// The client surfaces them as localization-ready token pairs
// ("#(response.<code>)", "#(response.<code>.headline)") so a UI layer can
// resolve them against its string catalog. Infrastructure failures stay plain
// English strings.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Canonical response codes the client itself emits.
const (
	CodeNotOnline                    = "notOnline"
	CodeServerNotReachable           = "serverNotReachable"
	CodeSeatAllowanceReached         = "seatAllowanceReached"
	CodeTermsOfServiceNotAccepted    = "termsOfServiceNotAccepted"
	CodeRevealedUserIdentityRequired = "revealedUserIdentityRequired"
	CodeAppUpdateRequired            = "appUpdateRequired"
	CodeCommercialAppNotAllowed      = "commercialAppNotAllowed"
	CodeLoginRequired                = "loginRequired"
	CodeUserUnknown                  = "userUnknown"
	CodeUnknownInstallation          = "unknownInstallation"
	CodeUnknownFont                  = "unknownFont"
)

// ResponseError carries a server (or client-canonical) response code.
type ResponseError struct {
	Code string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("#(response.%s)", e.Code)
}

// Pair returns the two-element, localization-ready message list the UI
// consumes: body token first, headline token second.
func (e *ResponseError) Pair() [2]string {
	return [2]string{
		fmt.Sprintf("#(response.%s)", e.Code),
		fmt.Sprintf("#(response.%s.headline)", e.Code),
	}
}

// NewResponse wraps a response code into an error.
func NewResponse(code string) *ResponseError {
	return &ResponseError{Code: code}
}

// ResponseCode extracts the response code from err, if any.
func ResponseCode(err error) (string, bool) {
	var re *ResponseError
	if stderrors.As(err, &re) {
		return re.Code, true
	}
	return "", false
}

// IsResponse reports whether err carries the given response code.
func IsResponse(err error, code string) bool {
	got, ok := ResponseCode(err)
	return ok && got == code
}

// LocalizedError is a single localization token without the response.
// namespace, e.g. "#(RequiredFieldEmpty)".
type LocalizedError struct {
	Token string
}

func (e *LocalizedError) Error() string {
	return fmt.Sprintf("#(%s)", e.Token)
}

// NewLocalized wraps a bare localization token into an error.
func NewLocalized(token string) *LocalizedError {
	return &LocalizedError{Token: token}
}

// Convenience re-exports so callers don't need both this package and the
// standard library one.

func New(text string) error { return stderrors.New(text) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }
