package dispatch

import (
	"errors"
	"reflect"
	"testing"
)

func testConfig() Config {
	return Config{
		ClusterID:        "cluster-1",
		TaskTemplateID:   "builder-task:3",
		SubnetIDs:        []string{"subnet-c", "subnet-a", "subnet-b"},
		SecurityGroupIDs: []string{"sg-1"},
	}
}

func TestBuildRequestPopulatesFixedParameters(t *testing.T) {
	cfg := testConfig()
	req, err := BuildRequest("https://github.com/x/y", "abc123", cfg)
	if err != nil {
		t.Fatalf("BuildRequest returned error: %v", err)
	}
	if req.ClusterID != "cluster-1" || req.TaskTemplateID != "builder-task:3" {
		t.Fatalf("unexpected identity parameters: %+v", req)
	}
	if req.LaunchType != LaunchTypeFargate || req.Count != 1 || req.Container != ContainerName {
		t.Fatalf("unexpected launch parameters: %+v", req)
	}
	if !req.Network.AssignPublicIP {
		t.Fatal("expected public ip assignment")
	}
	if !reflect.DeepEqual(req.Network.SubnetIDs, cfg.SubnetIDs) {
		t.Fatalf("subnet order not preserved: %v", req.Network.SubnetIDs)
	}
	if !reflect.DeepEqual(req.Network.SecurityGroupIDs, cfg.SecurityGroupIDs) {
		t.Fatalf("unexpected security groups: %v", req.Network.SecurityGroupIDs)
	}
	wantEnv := []EnvVar{
		{Name: EnvRepositoryURL, Value: "https://github.com/x/y"},
		{Name: EnvProjectID, Value: "abc123"},
	}
	if !reflect.DeepEqual(req.Environment, wantEnv) {
		t.Fatalf("unexpected environment: %+v", req.Environment)
	}
}

func TestBuildRequestCopiesNetworkSlices(t *testing.T) {
	cfg := testConfig()
	req, err := BuildRequest("https://github.com/x/y", "abc123", cfg)
	if err != nil {
		t.Fatalf("BuildRequest returned error: %v", err)
	}
	cfg.SubnetIDs[0] = "mutated"
	if req.Network.SubnetIDs[0] != "subnet-c" {
		t.Fatal("request shares subnet slice with config")
	}
}

func TestBuildRequestRequiresRepositoryURL(t *testing.T) {
	_, err := BuildRequest("", "abc123", testConfig())
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
