package wallet

// Status is the connection lifecycle phase.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// State is a snapshot of the orchestrator's connection state. Address is
// non-empty exactly when Status is StatusConnected.
type State struct {
	Status  Status `json:"status"`
	Address string `json:"address,omitempty"`
}
