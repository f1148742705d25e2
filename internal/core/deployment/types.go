package deployment

import "time"

// =============================================================================
// Service Definition
// =============================================================================

// Service describes the single long-running container a pipeline deploys.
type Service struct {
	Name          string
	Image         string
	HostPort      int
	ContainerPort int
	Env           map[string]string
	StopTimeout   time.Duration
}

// Instance is an existing container that may belong to the service.
type Instance struct {
	ID      string
	Name    string
	State   string
	Labels  map[string]string
	Running bool
}

// =============================================================================
// Container Plan Types
// =============================================================================

// ContainerPlan represents a planned container configuration.
// This is the pure output of planning, ready for the shell to execute.
type ContainerPlan struct {
	Name          string
	Image         string
	Env           map[string]string
	Labels        map[string]string
	Ports         []PortPlan
	RestartPolicy RestartPolicyPlan
}

// PortPlan represents a planned port binding.
type PortPlan struct {
	ContainerPort int
	HostPort      int
	Protocol      string
	HostIP        string
}

// RestartPolicyPlan represents a restart policy.
type RestartPolicyPlan struct {
	Name              string
	MaximumRetryCount int
}

// ReplacementPlan lists the steps of a redeploy in execution order:
// every instance in Remove is stopped and removed before Container is created.
type ReplacementPlan struct {
	// Stop holds IDs of running instances; each must be stopped first.
	Stop []string

	// Remove holds IDs of every previous instance, running or not.
	Remove []string

	// Container is the replacement instance.
	Container ContainerPlan
}

// =============================================================================
// Container Labels
// =============================================================================

// Label keys used for container identification.
const (
	LabelManaged = "com.deployline.managed"
	LabelService = "com.deployline.service"
)
