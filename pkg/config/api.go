package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment         string
	Addr                string
	LogLevel            string
	RedisURL            string
	LogChannelPattern   string
	ExecutorBackend     string
	AWSRegion           string
	AccessKeyID         string
	SecretAccessKey     string
	ClusterID           string
	TaskTemplateID      string
	SubnetIDs           []string
	SecurityGroupIDs    []string
	DockerHost          string
	DockerImage         string
	DispatchTimeout     time.Duration
	TrackingURLTemplate string
	RateLimitRedis      bool
	WSPingInterval      time.Duration
	RelayBackoffInitial time.Duration
	RelayBackoffMax     time.Duration
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:         GetString("APP_ENV", "development"),
		Addr:                GetString("API_ADDR", ":"+GetString("PORT", "9000")),
		LogLevel:            GetString("LOG_LEVEL", "info"),
		RedisURL:            GetString("REDIS_URL", "redis://localhost:6379/0"),
		LogChannelPattern:   GetString("LOG_CHANNEL_PATTERN", "logs:*"),
		ExecutorBackend:     GetString("EXECUTOR_BACKEND", "ecs"),
		AWSRegion:           GetString("AWS_REGION", "ap-south-1"),
		AccessKeyID:         GetString("ACCESS_KEY_ID", ""),
		SecretAccessKey:     GetString("SECRET_KEY", ""),
		ClusterID:           GetString("CLUSTER", ""),
		TaskTemplateID:      GetString("TASK", ""),
		SubnetIDs:           GetList("SUBNETS", "SUBNET1", "SUBNET2", "SUBNET3"),
		SecurityGroupIDs:    GetList("SECURITY_GROUPS", "SECURITY"),
		DockerHost:          GetString("DOCKER_HOST", ""),
		DockerImage:         GetString("DOCKER_IMAGE", "vercel-image:latest"),
		DispatchTimeout:     time.Duration(GetInt("DISPATCH_TIMEOUT_SECONDS", 15)) * time.Second,
		TrackingURLTemplate: GetString("TRACKING_URL_TEMPLATE", "http://localhost:8000/{slug}"),
		RateLimitRedis:      GetBool("RATE_LIMIT_REDIS", false),
		WSPingInterval:      time.Duration(GetInt("WS_PING_SECONDS", 30)) * time.Second,
		RelayBackoffInitial: time.Duration(GetInt("RELAY_BACKOFF_INITIAL_MS", 500)) * time.Millisecond,
		RelayBackoffMax:     time.Duration(GetInt("RELAY_BACKOFF_MAX_SECONDS", 30)) * time.Second,
	}
}
