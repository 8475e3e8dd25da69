package wallet

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/MrGarbonzo/secretforge/internal/provider"
)

// ErrConnectBusy is returned when a connect attempt starts while another is
// still in flight.
var ErrConnectBusy = errors.New("connect already in progress")

// ErrKind classifies a failed connect attempt.
type ErrKind string

const (
	KindUserRejected          ErrKind = "user_rejected"
	KindProviderUnavailable   ErrKind = "provider_unavailable"
	KindNoAccounts            ErrKind = "no_accounts"
	KindNetworkError          ErrKind = "network_error"
	KindTimeout               ErrKind = "timeout"
	KindConfigurationConflict ErrKind = "configuration_conflict"
	KindUnknown               ErrKind = "unknown"
)

// ConnectError is the typed failure of a connect attempt. Callers switch on
// Kind; the Hint is user-facing remediation text.
type ConnectError struct {
	Kind ErrKind
	Hint string
	Err  error
}

func (e *ConnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connect failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("connect failed (%s)", e.Kind)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// hints maps each error kind to its remediation text.
var hints = map[ErrKind]string{
	KindUserRejected:          "Approve the connection request in your wallet extension.",
	KindProviderUnavailable:   "Install the Keplr extension and reload the page.",
	KindNoAccounts:            "Create or import an account in your wallet, then retry.",
	KindNetworkError:          "Check your network connection and retry.",
	KindTimeout:               "The wallet did not respond in time. Retry the connection.",
	KindConfigurationConflict: "Remove the conflicting chain entry from your wallet settings, then retry.",
	KindUnknown:               "Retry the connection. If the problem persists, reload the page.",
}

// classify wraps err into a ConnectError with the matching kind and hint.
// An err that is already a ConnectError passes through unchanged.
func classify(err error) *ConnectError {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce
	}

	kind := KindUnknown
	switch {
	case errors.Is(err, provider.ErrUserRejected):
		kind = KindUserRejected
	case errors.Is(err, provider.ErrNotDetected):
		kind = KindProviderUnavailable
	case errors.Is(err, provider.ErrNoAccounts):
		kind = KindNoAccounts
	case errors.Is(err, provider.ErrChainConflict):
		kind = KindConfigurationConflict
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case isNetworkError(err):
		kind = KindNetworkError
	}

	return &ConnectError{Kind: kind, Hint: hints[kind], Err: err}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
