package request

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrorKind classifies a transport failure
type ErrorKind int

const (
	Timeout ErrorKind = iota
	ConnectionRefused
	DNSFailure
	Protocol
)

var errorKindNames = map[ErrorKind]string{
	Timeout:           "timeout",
	ConnectionRefused: "connection refused",
	DNSFailure:        "dns failure",
	Protocol:          "protocol error",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// Error is a classified network failure
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classify maps a transport error onto the failure taxonomy.
// Order matters: a DNS timeout is still a DNS failure.
func classify(err error) *Error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Kind: DNSFailure, Err: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &Error{Kind: ConnectionRefused, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: Timeout, Err: err}
	}
	return &Error{Kind: Protocol, Err: err}
}
