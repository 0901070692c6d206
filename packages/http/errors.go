package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// TransportErrorKind classifies why a request produced no HTTP response.
type TransportErrorKind string

const (
	KindTimeout           TransportErrorKind = "timeout"
	KindCancelled         TransportErrorKind = "cancelled"
	KindDNSFailure        TransportErrorKind = "dns_failure"
	KindConnectionRefused TransportErrorKind = "connection_refused"
	KindConnectionReset   TransportErrorKind = "connection_reset"
	KindTLSFailure        TransportErrorKind = "tls_failure"
	KindBodyTooLarge      TransportErrorKind = "body_too_large"
	KindTransport         TransportErrorKind = "transport_error"
)

// TransportError is embedded in a Response when the call failed before a
// complete HTTP response was received.
type TransportError struct {
	Kind TransportErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrorKind returns the classification string.
func (e *TransportError) ErrorKind() string { return string(e.Kind) }

// ConfigErrorKind classifies why a request template could not be built.
type ConfigErrorKind string

const (
	MalformedJSON     ConfigErrorKind = "malformed_json"
	InvalidQueryParam ConfigErrorKind = "invalid_query_param"
	InvalidMethod     ConfigErrorKind = "invalid_method"
	InvalidBodyType   ConfigErrorKind = "invalid_body_type"
	InvalidBaseURL    ConfigErrorKind = "invalid_base_url"
	InvalidURL        ConfigErrorKind = "invalid_url"
	MissingPathParam  ConfigErrorKind = "missing_path_param"
)

// ConfigError reports a malformed request template. It is raised before any
// network activity.
type ConfigError struct {
	Kind    ConfigErrorKind
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
}

// ErrorKind returns the classification string.
func (e *ConfigError) ErrorKind() string { return string(e.Kind) }

func configErrorf(kind ConfigErrorKind, field, format string, args ...any) *ConfigError {
	return &ConfigError{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// ErrorKind returns the classification of err when it carries one
// (TransportError, ConfigError), "error" otherwise and "" for nil.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var kinded interface{ ErrorKind() string }
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}
	return "error"
}

// classifyTransportError maps a failed round trip to a TransportError. parent
// is the caller's context, used to tell a caller abort from a timeout.
func classifyTransportError(parent context.Context, err error) *TransportError {
	var (
		dnsErr      *net.DNSError
		certErr     *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidCert x509.CertificateInvalidError
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
		netErr      net.Error
	)

	kind := KindTransport
	switch {
	case errors.Is(parent.Err(), context.Canceled), errors.Is(err, context.Canceled):
		kind = KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			kind = KindTimeout
		} else {
			kind = KindDNSFailure
		}
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = KindConnectionRefused
	case errors.Is(err, syscall.ECONNRESET):
		kind = KindConnectionReset
	case errors.As(err, &certErr), errors.As(err, &unknownAuth), errors.As(err, &hostErr),
		errors.As(err, &invalidCert), errors.As(err, &recordErr), errors.As(err, &alertErr):
		kind = KindTLSFailure
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &TransportError{Kind: kind, Err: err}
}
