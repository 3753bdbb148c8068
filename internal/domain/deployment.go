package domain

// DeploymentRequest is the caller supplied input for a new deployment.
type DeploymentRequest struct {
	RepositoryURL string `json:"gitURL"`
	Slug          string `json:"slug,omitempty"`
}

// Deployment describes a request that was handed to the task executor.
type Deployment struct {
	ProjectSlug string `json:"projectSlug"`
	URL         string `json:"url"`
	TaskID      string `json:"-"`
}
