package docker

import (
	"reflect"
	"testing"

	"github.com/hemanthhhhhh/API-Server/internal/dispatch"
)

func TestContainerSpecCarriesOverrides(t *testing.T) {
	req, err := dispatch.BuildRequest("https://github.com/x/y", "abc123", dispatch.Config{ClusterID: "ignored"})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	cfg, hostCfg, name := ContainerSpec(req, "vercel-image:latest")

	if cfg.Image != "vercel-image:latest" {
		t.Fatalf("unexpected image %q", cfg.Image)
	}
	want := []string{"GIT_REPOSITORY__URL=https://github.com/x/y", "PROJECT_ID=abc123"}
	if !reflect.DeepEqual(cfg.Env, want) {
		t.Fatalf("unexpected env %v", cfg.Env)
	}
	if cfg.Labels[projectLabel] != "abc123" {
		t.Fatalf("missing project label: %v", cfg.Labels)
	}
	if !hostCfg.AutoRemove {
		t.Fatal("expected auto remove")
	}
	if name != "vercel-image-abc123" {
		t.Fatalf("unexpected container name %q", name)
	}
}

func TestContainerNameSanitizesSlug(t *testing.T) {
	if got := containerName("vercel-image", "my app/1"); got != "vercel-image-my-app-1" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := containerName("vercel-image", ""); got != "vercel-image" {
		t.Fatalf("unexpected name %q", got)
	}
}
