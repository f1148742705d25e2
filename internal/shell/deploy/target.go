// Package deploy redeploys the service container: every previous instance is
// stopped and removed before a fresh one is started on the fixed port.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coredeployment "github.com/artpar/deployline/internal/core/deployment"
	"github.com/artpar/deployline/internal/shell/docker"
)

// DefaultStopTimeout is how long a previous instance gets to exit gracefully.
const DefaultStopTimeout = 10 * time.Second

// Target is the deployed service on a Docker host.
type Target struct {
	docker  docker.Client
	service coredeployment.Service
	logger  *slog.Logger
}

// NewTarget creates a deployment target for svc.
func NewTarget(d docker.Client, svc coredeployment.Service, logger *slog.Logger) (*Target, error) {
	if err := coredeployment.ValidateService(svc); err != nil {
		return nil, err
	}
	if svc.StopTimeout == 0 {
		svc.StopTimeout = DefaultStopTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Target{
		docker:  d,
		service: svc,
		logger:  logger.With("component", "deploy_target", "service", svc.Name),
	}, nil
}

// Service returns the service this target deploys.
func (t *Target) Service() coredeployment.Service {
	return t.service
}

// Redeploy stops and removes any previous instance, then creates and starts
// a new one. Absence of a previous instance is not an error. Stop and removal
// complete before the new container is created, so the port is never bound
// twice. A missing image fails before any previous instance is touched.
// There are no retries.
func (t *Target) Redeploy(ctx context.Context) (*docker.ContainerInfo, error) {
	if err := t.ensureImage(ctx); err != nil {
		return nil, err
	}

	existing, err := t.discover(ctx)
	if err != nil {
		return nil, err
	}

	plan := coredeployment.PlanReplacement(t.service, existing)
	if len(plan.Remove) == 0 {
		t.logger.Info("no previous instance, first deployment")
	}

	if err := t.retire(ctx, plan); err != nil {
		return nil, err
	}

	return t.start(ctx, plan.Container)
}

func (t *Target) ensureImage(ctx context.Context) error {
	image := t.service.Image
	exists, err := t.docker.ImageExists(ctx, image)
	if err != nil {
		return fmt.Errorf("check image %s: %w", image, err)
	}
	if !exists {
		return docker.NewDockerError("Redeploy", "image", image, "image not found locally, it must be built first", docker.ErrImageNotFound)
	}
	return nil
}

// discover lists every container that may be a previous instance: those
// carrying the service label and the one holding the fixed container name.
func (t *Target) discover(ctx context.Context) ([]coredeployment.Instance, error) {
	labelled, err := t.docker.ListContainers(ctx, docker.ListOptions{
		All:     true,
		Filters: coredeployment.ServiceFilter(t.service.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("list previous instances: %w", err)
	}

	instances := make([]coredeployment.Instance, 0, len(labelled)+1)
	for _, c := range labelled {
		instances = append(instances, toInstance(c))
	}

	named, err := t.docker.InspectContainer(ctx, coredeployment.ContainerName(t.service.Name))
	switch {
	case err == nil:
		instances = append(instances, toInstance(*named))
	case docker.IsNotFound(err):
	default:
		return nil, fmt.Errorf("inspect previous instance: %w", err)
	}

	return instances, nil
}

// retire stops running instances and removes all of them, in plan order.
func (t *Target) retire(ctx context.Context, plan coredeployment.ReplacementPlan) error {
	timeout := t.service.StopTimeout

	for _, id := range plan.Stop {
		t.logger.Info("stopping previous instance", "container_id", shortID(id))
		err := t.docker.StopContainer(ctx, id, &timeout)
		if err != nil && !errors.Is(err, docker.ErrContainerNotRunning) && !errors.Is(err, docker.ErrContainerNotFound) {
			return fmt.Errorf("stop previous instance %s: %w", shortID(id), err)
		}
	}

	for _, id := range plan.Remove {
		err := t.docker.RemoveContainer(ctx, id, docker.RemoveOptions{Force: true})
		if err != nil && !docker.IsNotFound(err) {
			return fmt.Errorf("remove previous instance %s: %w", shortID(id), err)
		}
		t.logger.Info("removed previous instance", "container_id", shortID(id))
	}

	return nil
}

// start creates and starts the replacement container. A container that was
// created but failed to start is removed so no orphan is left behind.
func (t *Target) start(ctx context.Context, plan coredeployment.ContainerPlan) (*docker.ContainerInfo, error) {
	id, err := t.docker.CreateContainer(ctx, toContainerSpec(plan))
	if err != nil {
		return nil, fmt.Errorf("create container %s: %w", plan.Name, err)
	}

	if err := t.docker.StartContainer(ctx, id); err != nil {
		if rmErr := t.docker.RemoveContainer(ctx, id, docker.RemoveOptions{Force: true}); rmErr != nil {
			t.logger.Warn("failed to remove container after failed start", "container_id", shortID(id), "error", rmErr)
		}
		return nil, fmt.Errorf("start container %s: %w", plan.Name, err)
	}

	info, err := t.docker.InspectContainer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("inspect started container %s: %w", plan.Name, err)
	}

	t.logger.Info("service started",
		"container_id", shortID(id),
		"image", plan.Image,
		"host_port", t.service.HostPort,
	)
	return info, nil
}

func toInstance(c docker.ContainerInfo) coredeployment.Instance {
	return coredeployment.Instance{
		ID:      c.ID,
		Name:    c.Name,
		State:   string(c.Status),
		Labels:  c.Labels,
		Running: c.Running(),
	}
}

func toContainerSpec(plan coredeployment.ContainerPlan) docker.ContainerSpec {
	spec := docker.ContainerSpec{
		Name:   plan.Name,
		Image:  plan.Image,
		Env:    plan.Env,
		Labels: plan.Labels,
		RestartPolicy: docker.RestartPolicy{
			Name:              plan.RestartPolicy.Name,
			MaximumRetryCount: plan.RestartPolicy.MaximumRetryCount,
		},
	}
	for _, p := range plan.Ports {
		spec.Ports = append(spec.Ports, docker.PortBinding{
			ContainerPort: p.ContainerPort,
			HostPort:      p.HostPort,
			Protocol:      p.Protocol,
			HostIP:        p.HostIP,
		})
	}
	return spec
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
