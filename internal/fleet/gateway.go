package fleet

import "context"

// InstanceState is the compute provider's view of an instance lifecycle.
type InstanceState string

const (
	StatePending    InstanceState = "pending"
	StateRunning    InstanceState = "running"
	StateStopping   InstanceState = "stopping"
	StateStopped    InstanceState = "stopped"
	StateTerminated InstanceState = "terminated"
)

// Terminal reports whether the provider will not move the instance further
// on its own after a start request.
func (s InstanceState) Terminal() bool {
	switch s {
	case StateRunning, StateStopped, StateTerminated:
		return true
	default:
		return false
	}
}

// InstanceDescription is the provider-reported state of one instance.
type InstanceDescription struct {
	ID      string
	State   InstanceState
	Address string
}

// LaunchTemplate describes how new worker instances are created.
type LaunchTemplate struct {
	ImageID       string
	InstanceType  string
	SecurityGroup string
}

// Gateway is the contract the autoscaler consumes from the compute provider.
// Implementations surface network/server failures as
// services.ErrTransientGateway.
type Gateway interface {
	// Start boots stopped instances. A single call covers the whole batch.
	Start(ctx context.Context, instanceIDs []string) error
	// Stop shuts down running instances without releasing them.
	Stop(ctx context.Context, instanceIDs []string) error
	// Terminate releases instances permanently.
	Terminate(ctx context.Context, instanceIDs []string) error
	// Describe reports current state and network address per instance.
	Describe(ctx context.Context, instanceIDs []string) ([]InstanceDescription, error)
	// Launch creates count new instances from the template and returns
	// their provider-assigned identifiers.
	Launch(ctx context.Context, template LaunchTemplate, count int) ([]string, error)
}
