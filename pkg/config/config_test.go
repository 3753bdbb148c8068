package config

import (
	"reflect"
	"testing"
	"time"
)

func TestGetListSplitsAndTrims(t *testing.T) {
	t.Setenv("SUBNETS", " subnet-a, ,subnet-b ,subnet-c")
	got := GetList("SUBNETS", "SUBNET1")
	want := []string{"subnet-a", "subnet-b", "subnet-c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestGetListFallsBackToNumberedKeys(t *testing.T) {
	t.Setenv("SUBNET1", "subnet-1")
	t.Setenv("SUBNET2", "")
	t.Setenv("SUBNET3", "subnet-3")
	got := GetList("SUBNETS_UNSET_FOR_TEST", "SUBNET1", "SUBNET2", "SUBNET3")
	want := []string{"subnet-1", "subnet-3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestGetIntInvalidUsesFallback(t *testing.T) {
	t.Setenv("DISPATCH_TIMEOUT_SECONDS", "soon")
	if got := GetInt("DISPATCH_TIMEOUT_SECONDS", 15); got != 15 {
		t.Fatalf("expected fallback 15, got %d", got)
	}
}

func TestLoadAPIConfigDefaults(t *testing.T) {
	t.Setenv("SECURITY_GROUPS", "")
	t.Setenv("SECURITY", "sg-123")
	t.Setenv("WS_PING_SECONDS", "5")
	cfg := LoadAPIConfig()
	if cfg.LogChannelPattern != "logs:*" {
		t.Fatalf("unexpected channel pattern %q", cfg.LogChannelPattern)
	}
	if !reflect.DeepEqual(cfg.SecurityGroupIDs, []string{"sg-123"}) {
		t.Fatalf("unexpected security groups %v", cfg.SecurityGroupIDs)
	}
	if cfg.WSPingInterval != 5*time.Second {
		t.Fatalf("unexpected ping interval %s", cfg.WSPingInterval)
	}
}
