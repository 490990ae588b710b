package events

// EventSink pushes events to connected users, best effort. A user who is
// not connected simply misses the live push; durable notification records
// are the catch-up path.
type EventSink interface {
	Broadcast(topic string, payload interface{})
	NotifyUser(userID, severity, message string)
}

// ConnectionRegistry reports which users currently hold a live connection.
// The overdue sweeper only walks connected users' items each cycle.
type ConnectionRegistry interface {
	ConnectedUsers() []string
}
