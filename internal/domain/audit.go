package domain

import "time"

// AuditKind classifies audit log entries.
type AuditKind string

const (
	AuditConnectAttempt AuditKind = "CONNECT_ATTEMPT"
	AuditDisconnect     AuditKind = "DISCONNECT"
	AuditKeyResolution  AuditKind = "KEY_RESOLUTION"
	AuditBalanceQuery   AuditKind = "BALANCE_QUERY"
)

// AuditEvent is one append-only diagnostic record. Raw error detail lands
// here and in the logs; it is never shown to the user directly.
type AuditEvent struct {
	Kind      AuditKind
	Address   string // account address, may be empty for failed connects
	Token     string // token key for per-token events, else empty
	Outcome   string // "success" or a classified error code
	Detail    string // raw error text, empty on success
	LatencyMs int64
	At        time.Time
}
