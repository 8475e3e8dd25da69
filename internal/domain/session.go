package domain

import "time"

// SessionRecord is the durable trace of a wallet connection.
// Only address and the connected flag are persisted; it is read once at
// startup to decide whether a silent reconnect should be attempted.
type SessionRecord struct {
	ProfileID string // owner of the record, one per browser profile / device
	Address   string // bech32 account address
	Connected bool
	UpdatedAt time.Time
}
