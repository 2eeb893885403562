package ports

import "context"

// ConsoleExecutor sends one administrative command to a running instance's
// remote console and returns its single textual response. Each call opens,
// authenticates, sends, receives, and closes; commands are never pipelined
// on a shared connection.
type ConsoleExecutor interface {
	Execute(ctx context.Context, addr string, port int, password, command string) (string, error)
}

// StatusBroadcaster pushes a live status message to every subscriber in the
// given tenant's channel.
type StatusBroadcaster interface {
	Broadcast(tenantID string, msg any)
}
