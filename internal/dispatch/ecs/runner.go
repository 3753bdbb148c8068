// Package ecs submits execution requests as Fargate tasks.
package ecs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/hemanthhhhhh/API-Server/internal/dispatch"
)

// ErrNoTaskStarted indicates ECS accepted the call but started no task.
var ErrNoTaskStarted = errors.New("ecs: no task started")

// API is the subset of the ECS client used by Runner.
type API interface {
	RunTask(ctx context.Context, params *awsecs.RunTaskInput, optFns ...func(*awsecs.Options)) (*awsecs.RunTaskOutput, error)
}

// Runner implements dispatch.TaskRunner on top of ECS RunTask.
type Runner struct {
	api    API
	logger *slog.Logger
}

// New builds an ECS client from static credentials when provided and the
// default AWS credential chain otherwise. Client side retries are disabled so
// each submission is a single attempt.
func New(ctx context.Context, creds dispatch.Credentials, logger *slog.Logger) (*Runner, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region := strings.TrimSpace(creds.Region); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		provider := credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(provider))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := awsecs.NewFromConfig(cfg, func(o *awsecs.Options) {
		o.Retryer = aws.NopRetryer{}
	})
	return NewWithAPI(client, logger), nil
}

// NewWithAPI wraps an existing ECS API implementation.
func NewWithAPI(api API, logger *slog.Logger) *Runner {
	return &Runner{api: api, logger: logger}
}

// RunTask submits the request and returns the ARN of the started task.
func (r *Runner) RunTask(ctx context.Context, req dispatch.ExecutionRequest) (dispatch.Submission, error) {
	out, err := r.api.RunTask(ctx, Input(req))
	if err != nil {
		return dispatch.Submission{}, fmt.Errorf("ecs run task: %w", err)
	}
	if len(out.Failures) > 0 {
		failure := out.Failures[0]
		return dispatch.Submission{}, fmt.Errorf("ecs run task: %s: %s", aws.ToString(failure.Reason), aws.ToString(failure.Detail))
	}
	if len(out.Tasks) == 0 {
		return dispatch.Submission{}, ErrNoTaskStarted
	}
	taskARN := aws.ToString(out.Tasks[0].TaskArn)
	r.logger.Debug("ecs task started", "task_arn", taskARN, "cluster", req.ClusterID)
	return dispatch.Submission{TaskID: taskARN}, nil
}

// Input maps an execution request onto the ECS RunTask input.
func Input(req dispatch.ExecutionRequest) *awsecs.RunTaskInput {
	env := make([]types.KeyValuePair, 0, len(req.Environment))
	for _, e := range req.Environment {
		env = append(env, types.KeyValuePair{Name: aws.String(e.Name), Value: aws.String(e.Value)})
	}
	assignPublicIP := types.AssignPublicIpDisabled
	if req.Network.AssignPublicIP {
		assignPublicIP = types.AssignPublicIpEnabled
	}
	return &awsecs.RunTaskInput{
		Cluster:        aws.String(req.ClusterID),
		TaskDefinition: aws.String(req.TaskTemplateID),
		LaunchType:     types.LaunchType(req.LaunchType),
		Count:          aws.Int32(req.Count),
		NetworkConfiguration: &types.NetworkConfiguration{
			AwsvpcConfiguration: &types.AwsVpcConfiguration{
				Subnets:        req.Network.SubnetIDs,
				SecurityGroups: req.Network.SecurityGroupIDs,
				AssignPublicIp: assignPublicIP,
			},
		},
		Overrides: &types.TaskOverride{
			ContainerOverrides: []types.ContainerOverride{{
				Name:        aws.String(req.Container),
				Environment: env,
			}},
		},
	}
}
