package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hemanthhhhhh/API-Server/internal/domain"
	"github.com/hemanthhhhhh/API-Server/internal/slug"
)

// StatusQueued is reported once the executor accepted a request.
const StatusQueued = "queued"

const (
	defaultTimeout = 15 * time.Second
	slugToken      = "{slug}"
)

// Service allocates slugs and hands deployments to the task runner.
type Service struct {
	runner      TaskRunner
	cfg         Config
	urlTemplate string
	timeout     time.Duration
	logger      *slog.Logger
	allocate    func(string) string
}

// New returns a dispatch service.
func New(runner TaskRunner, cfg Config, urlTemplate string, timeout time.Duration, logger *slog.Logger) Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return Service{
		runner:      runner,
		cfg:         cfg,
		urlTemplate: urlTemplate,
		timeout:     timeout,
		logger:      logger,
		allocate:    slug.Allocate,
	}
}

// Dispatch submits a build task for the repository and returns the tracking
// details once the executor acknowledged it. It does not wait for the task.
func (s Service) Dispatch(ctx context.Context, req domain.DeploymentRequest) (domain.Deployment, error) {
	projectSlug := s.allocate(req.Slug)
	execReq, err := BuildRequest(req.RepositoryURL, projectSlug, s.cfg)
	if err != nil {
		return domain.Deployment{}, err
	}

	submitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	submission, err := s.runner.RunTask(submitCtx, execReq)
	if err != nil {
		s.logger.Error("task submission failed", "project_slug", projectSlug, "error", err)
		return domain.Deployment{}, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	s.logger.Info("deployment queued", "project_slug", projectSlug, "task_id", submission.TaskID, "repository", req.RepositoryURL)
	return domain.Deployment{
		ProjectSlug: projectSlug,
		URL:         TrackingURL(s.urlTemplate, projectSlug),
		TaskID:      submission.TaskID,
	}, nil
}

// TrackingURL renders the preview URL for a slug. Templates without a
// placeholder get the slug appended as a path segment.
func TrackingURL(template, projectSlug string) string {
	if strings.Contains(template, slugToken) {
		return strings.ReplaceAll(template, slugToken, projectSlug)
	}
	return strings.TrimRight(template, "/") + "/" + projectSlug
}
