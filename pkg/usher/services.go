package usher

import (
	"fmt"
)

// Canonical service registry keys shared by the kernel, drivers, and modules.
const (
	// ServiceLogger is the registry key for the shared *slog.Logger.
	ServiceLogger = "logger"
	// ServiceInviteLister is the registry key for the driver-provided InviteLister.
	ServiceInviteLister = "usher.invite_lister"
	// ServiceInviteLedger is the registry key for the tracker-provided InviteLedger.
	ServiceInviteLedger = "usher.invite_ledger"
	// ServiceOutboundDispatcher is the registry key for outbound messaging.
	ServiceOutboundDispatcher = "usher.outbound_dispatcher"
	// ServiceJoinAnnouncer is the registry key for the optional join announcer.
	ServiceJoinAnnouncer = "usher.join_announcer"
)

// ServiceRegistry provides runtime dependency injection to modules and drivers.
type ServiceRegistry interface {
	// Register binds a singleton service value to a stable name.
	Register(name string, service any) error
	// Resolve returns a registered service by name.
	Resolve(name string) (any, error)
}

// ResolveAs resolves a service and casts it to the requested type.
func ResolveAs[T any](registry ServiceRegistry, name string) (T, error) {
	var zero T

	service, err := registry.Resolve(name)
	if err != nil {
		return zero, fmt.Errorf("resolve service %s: %w", name, err)
	}

	typed, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("resolve service %s: type assertion failed", name)
	}

	return typed, nil
}
