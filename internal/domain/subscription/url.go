// Package subscription holds the subscription URL value object and the
// persisted subscription record model.
package subscription

import (
	"fmt"
	"strings"
)

// CustomProtocol is the URL scheme the client claims with the operating
// system. Every subscription URL starts with it.
const CustomProtocol = "typeworld://"

// DefaultProtocol is assumed when a URL carries no explicit "<protocol>+"
// prefix after the scheme.
const DefaultProtocol = "json"

// URL is the parsed form of a subscription URL such as
//
//	typeworld://json+https//subscriptionID:secretKey@typeworldserver.com/api/
//
// The secret key never leaves this struct except through SecretURL.
type URL struct {
	Protocol       string // wire protocol flavor, e.g. "json"
	Transport      string // "https://" or "http://"
	SubscriptionID string
	SecretKey      string
	AccessToken    string // single-use, only present on freshly issued URLs
	RestDomain     string // host plus path, no scheme
}

// Parse splits a subscription URL into its parts. It rejects malformed URLs
// with a descriptive error but does not verify that the protocol flavor is
// actually implemented; that is the protocol registry's concern.
func Parse(raw string) (*URL, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}

	rest := strings.TrimPrefix(raw, CustomProtocol)

	proto := DefaultProtocol
	if idx := strings.Index(rest, "+"); idx >= 0 {
		proto = rest[:idx]
		rest = rest[idx+1:]
	}

	var transport string
	switch {
	case strings.HasPrefix(rest, "https//"):
		transport = "https://"
		rest = strings.TrimPrefix(rest, "https//")
	case strings.HasPrefix(rest, "http//"):
		transport = "http://"
		rest = strings.TrimPrefix(rest, "http//")
	default:
		return nil, fmt.Errorf("URL is missing the transport protocol (https// or http//)")
	}

	u := &URL{Protocol: proto, Transport: transport}

	at := strings.Index(rest, "@")
	if at < 0 {
		u.RestDomain = rest
		return u, nil
	}

	u.RestDomain = rest[at+1:]
	credentials := strings.Split(rest[:at], ":")
	switch len(credentials) {
	case 3:
		u.SubscriptionID, u.SecretKey, u.AccessToken = credentials[0], credentials[1], credentials[2]
	case 2:
		u.SubscriptionID, u.SecretKey = credentials[0], credentials[1]
	case 1:
		u.SubscriptionID = credentials[0]
	default:
		return nil, fmt.Errorf("URL carries too many credential parts")
	}

	return u, nil
}

// Validate checks the overall shape of a subscription URL without splitting
// it. It is the gate for URLs arriving from outside the app, such as a
// clicked link handed over by the operating system.
func Validate(raw string) error {
	if !strings.HasPrefix(raw, CustomProtocol) {
		return fmt.Errorf("unknown custom protocol, expected %q", CustomProtocol)
	}
	if strings.Count(raw, "://") > 1 {
		return fmt.Errorf("URL contains more than one ://")
	}
	if strings.Count(raw, "@") > 1 {
		return fmt.Errorf("URL contains more than one @")
	}
	return nil
}

// SecretURL returns the complete URL including the secret key. It is used
// only to address the keychain and to talk to the publisher endpoint; it
// must never be logged or written to preferences.
func (u *URL) SecretURL() string {
	if u.SubscriptionID != "" && u.SecretKey != "" {
		return u.prefix() + u.SubscriptionID + ":" + u.SecretKey + "@" + u.RestDomain
	}
	if u.SubscriptionID != "" {
		return u.prefix() + u.SubscriptionID + "@" + u.RestDomain
	}
	return u.prefix() + u.RestDomain
}

// UnsecretURL is the serialization-safe form: the secret key is replaced by
// the literal word "secretKey". This is what goes into preferences.
func (u *URL) UnsecretURL() string {
	if u.SubscriptionID != "" && u.SecretKey != "" {
		return u.prefix() + u.SubscriptionID + ":" + "secretKey" + "@" + u.RestDomain
	}
	if u.SubscriptionID != "" {
		return u.prefix() + u.SubscriptionID + "@" + u.RestDomain
	}
	return u.prefix() + u.RestDomain
}

// ShortUnsecretURL drops the secret key entirely. It identifies the
// subscription on the central server and in push topics.
func (u *URL) ShortUnsecretURL() string {
	if u.SubscriptionID != "" {
		return u.prefix() + u.SubscriptionID + "@" + u.RestDomain
	}
	return u.prefix() + u.RestDomain
}

// HTTPURL is the plain web address of the publisher endpoint.
func (u *URL) HTTPURL() string {
	return u.Transport + u.RestDomain
}

func (u *URL) prefix() string {
	return CustomProtocol + u.Protocol + "+" + strings.Replace(u.Transport, "://", "//", 1)
}
