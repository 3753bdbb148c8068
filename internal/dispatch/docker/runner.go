package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/hemanthhhhhh/API-Server/internal/dispatch"
)

// ErrImageNotFound indicates the build image is not present on the daemon.
var ErrImageNotFound = errors.New("docker: build image not found")

const projectLabel = "vercel.project-slug"

// Runner implements dispatch.TaskRunner by starting one container per request.
// Cluster and network fields of the request do not apply locally and are ignored.
type Runner struct {
	client *Client
	image  string
	logger *slog.Logger
}

// NewRunner returns a runner starting containers from image.
func NewRunner(c *Client, image string, logger *slog.Logger) *Runner {
	return &Runner{client: c, image: image, logger: logger}
}

// RunTask creates and starts the build container, returning its ID.
func (r *Runner) RunTask(ctx context.Context, req dispatch.ExecutionRequest) (dispatch.Submission, error) {
	if r.client == nil || r.client.inner == nil {
		return dispatch.Submission{}, fmt.Errorf("docker client not initialized")
	}
	cfg, hostCfg, name := ContainerSpec(req, r.image)
	created, err := r.client.inner.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return dispatch.Submission{}, fmt.Errorf("%w: %s", ErrImageNotFound, r.image)
		}
		return dispatch.Submission{}, fmt.Errorf("create container: %w", err)
	}
	if err := r.client.inner.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return dispatch.Submission{}, fmt.Errorf("start container: %w", err)
	}
	for _, warning := range created.Warnings {
		r.logger.Warn("docker create warning", "container", name, "warning", warning)
	}
	return dispatch.Submission{TaskID: created.ID}, nil
}

// ContainerSpec maps an execution request onto container settings.
func ContainerSpec(req dispatch.ExecutionRequest, image string) (*container.Config, *container.HostConfig, string) {
	env := make([]string, 0, len(req.Environment))
	for _, e := range req.Environment {
		env = append(env, e.Name+"="+e.Value)
	}
	projectSlug, _ := req.Env(dispatch.EnvProjectID)
	cfg := &container.Config{
		Image:  image,
		Env:    env,
		Labels: map[string]string{projectLabel: projectSlug},
	}
	hostCfg := &container.HostConfig{AutoRemove: true}
	return cfg, hostCfg, containerName(req.Container, projectSlug)
}

func containerName(base, projectSlug string) string {
	var b strings.Builder
	for _, r := range projectSlug {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return base
	}
	return base + "-" + b.String()
}
