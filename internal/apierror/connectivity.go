package apierror

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
)

// connectivityErrnos are the transport-level failures that mean "couldn't
// reach the host" rather than "the host rejected the request".
var connectivityErrnos = []syscall.Errno{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
	syscall.EHOSTUNREACH,
	syscall.ENETUNREACH,
	syscall.ENETDOWN,
	syscall.ETIMEDOUT,
}

// IsConnectivityError reports whether err is a connectivity-related transport
// failure: no network, unknown host, connection refused or lost, DNS failure,
// or a timeout. Wrapped errors are unwrapped via errors.Is/As before the
// check, so the innermost cause decides.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	for _, errno := range connectivityErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		// Dial failures that didn't map to a recognized errno still count:
		// the request never reached the server.
		return opErr.Op == "dial"
	}
	return false
}
