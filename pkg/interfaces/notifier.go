package interfaces

// Notifier delivers events to connections addressed by identity.
// Delivery is fire-and-forget: the return value only reports whether a
// live connection accepted the frame into its outbound buffer.
type Notifier interface {
	Notify(connID string, event string, payload interface{}) bool
}
