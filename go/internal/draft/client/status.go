package client

// ConnectionStatus is the state of the manager's session.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "DISCONNECTED"
	StatusConnecting   ConnectionStatus = "CONNECTING"
	StatusConnected    ConnectionStatus = "CONNECTED"
	// StatusError follows a transport failure. Reconnect attempts continue from it until
	// the attempt cap is reached, after which Err returns ErrConnectionFailed.
	StatusError ConnectionStatus = "ERROR"
)
