package deployment

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidService is returned when a service definition cannot be deployed.
	ErrInvalidService = errors.New("invalid service definition")
)

// ValidateService checks the fields a redeploy depends on.
func ValidateService(svc Service) error {
	if svc.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidService)
	}
	if svc.Image == "" {
		return fmt.Errorf("%w: image is required", ErrInvalidService)
	}
	if !validPort(svc.HostPort) {
		return fmt.Errorf("%w: host port %d out of range", ErrInvalidService, svc.HostPort)
	}
	if !validPort(svc.ContainerPort) {
		return fmt.Errorf("%w: container port %d out of range", ErrInvalidService, svc.ContainerPort)
	}
	return nil
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// BuildContainerPlan builds the replacement container for a service.
//
// The container gets the fixed name from ContainerName, the service labels,
// and a single TCP binding from HostPort to ContainerPort.
func BuildContainerPlan(svc Service) ContainerPlan {
	plan := ContainerPlan{
		Name:   ContainerName(svc.Name),
		Image:  ImageTag(svc.Image),
		Env:    make(map[string]string, len(svc.Env)),
		Labels: ServiceLabels(svc.Name),
		Ports: []PortPlan{{
			ContainerPort: svc.ContainerPort,
			HostPort:      svc.HostPort,
			Protocol:      "tcp",
		}},
		RestartPolicy: RestartPolicyPlan{Name: "unless-stopped"},
	}
	for k, v := range svc.Env {
		plan.Env[k] = v
	}
	return plan
}

// BelongsTo reports whether an instance is a previous deployment of svc,
// either by label or by holding the service's fixed container name.
func BelongsTo(inst Instance, svc Service) bool {
	if inst.Labels[LabelService] == svc.Name {
		return true
	}
	return inst.Name == ContainerName(svc.Name)
}

// PlanReplacement decides how to replace every previous instance of svc with
// a fresh one. Instances not belonging to svc are ignored and duplicates are
// collapsed. An empty Remove list means this is a first deployment.
func PlanReplacement(svc Service, existing []Instance) ReplacementPlan {
	plan := ReplacementPlan{
		Container: BuildContainerPlan(svc),
	}

	seen := make(map[string]bool, len(existing))
	for _, inst := range existing {
		if inst.ID == "" || seen[inst.ID] || !BelongsTo(inst, svc) {
			continue
		}
		seen[inst.ID] = true

		if inst.Running {
			plan.Stop = append(plan.Stop, inst.ID)
		}
		plan.Remove = append(plan.Remove, inst.ID)
	}

	return plan
}
