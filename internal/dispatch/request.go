package dispatch

import "fmt"

// Fixed parameters of every execution request.
const (
	ContainerName     = "vercel-image"
	LaunchTypeFargate = "FARGATE"
	EnvRepositoryURL  = "GIT_REPOSITORY__URL"
	EnvProjectID      = "PROJECT_ID"
)

// Credentials identify the caller against the task execution service.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// Config carries the network and identity parameters injected into every
// execution request.
type Config struct {
	ClusterID        string
	TaskTemplateID   string
	SubnetIDs        []string
	SecurityGroupIDs []string
	Credentials      Credentials
}

// EnvVar is a single environment override for the build container.
type EnvVar struct {
	Name  string
	Value string
}

// NetworkConfig describes task networking.
type NetworkConfig struct {
	SubnetIDs        []string
	SecurityGroupIDs []string
	AssignPublicIP   bool
}

// ExecutionRequest is a fully specified run request for the task executor.
type ExecutionRequest struct {
	ClusterID      string
	TaskTemplateID string
	LaunchType     string
	Count          int32
	Container      string
	Environment    []EnvVar
	Network        NetworkConfig
}

// Env returns the value of the named override.
func (r ExecutionRequest) Env(name string) (string, bool) {
	for _, env := range r.Environment {
		if env.Name == name {
			return env.Value, true
		}
	}
	return "", false
}

// BuildRequest translates a repository and slug into an ExecutionRequest.
// It performs no I/O.
func BuildRequest(repositoryURL, projectSlug string, cfg Config) (ExecutionRequest, error) {
	if repositoryURL == "" {
		return ExecutionRequest{}, fmt.Errorf("%w: gitURL is required", ErrInvalidRequest)
	}
	return ExecutionRequest{
		ClusterID:      cfg.ClusterID,
		TaskTemplateID: cfg.TaskTemplateID,
		LaunchType:     LaunchTypeFargate,
		Count:          1,
		Container:      ContainerName,
		Environment: []EnvVar{
			{Name: EnvRepositoryURL, Value: repositoryURL},
			{Name: EnvProjectID, Value: projectSlug},
		},
		Network: NetworkConfig{
			SubnetIDs:        append([]string(nil), cfg.SubnetIDs...),
			SecurityGroupIDs: append([]string(nil), cfg.SecurityGroupIDs...),
			AssignPublicIP:   true,
		},
	}, nil
}
