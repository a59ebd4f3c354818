package core

// Role distinguishes the two kinds of session the relay serves.
type Role string

const (
	RoleObserver Role = "observer"
	RoleBridge   Role = "bridge"
)

// Session is the broker's view of a connected peer. Send must not block: it
// enqueues the event and reports false when the event was dropped.
type Session interface {
	ID() string
	Role() Role
	Send(ev Event) bool
}

// PortInfo is what a bridge reports about its vehicle link on registration.
type PortInfo struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baudrate,omitempty"`
}
