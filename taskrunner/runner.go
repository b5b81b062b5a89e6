// Package taskrunner launches a one-off ECS task inside the network of an existing service, waits for it to
// stop and reports the exit code of one of its containers.
package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/google/uuid"
)

const (
	// DefaultMaxWait bounds each of the two waits: task RUNNING and task STOPPED.
	DefaultMaxWait = 120 * time.Second
	// StartedBy tags every task launched by the Runner.
	StartedBy = "run-ecs-task-action"

	stopTimeout       = 10 * time.Second
	maxStopReasonSize = 255
)

// Params identify what to run and where. All fields are required.
type Params struct {
	Cluster        string
	Service        string
	TaskDefinition string
	ContainerName  string
	Command        string
}

func (p Params) Validate() error {
	var errs []error
	for _, field := range []struct{ name, value string }{
		{"cluster", p.Cluster},
		{"service", p.Service},
		{"task definition", p.TaskDefinition},
		{"container name", p.ContainerName},
		{"command", p.Command},
	} {
		if len(field.value) == 0 {
			errs = append(errs, fmt.Errorf("%s is required", field.name))
		}
	}
	return errors.Join(errs...)
}

type Options struct {
	MaxWait time.Duration
	// StopOnFailure stops the launched task if the Runner gives up on it before it has stopped.
	StopOnFailure bool
	// PrintLogs prints the container's CloudWatch logs once the task has stopped.
	PrintLogs bool
}

// Result describes a task whose target container exited with code 0.
type Result struct {
	TaskARN       string
	ContainerName string
	ExitCode      int32
	StoppedReason string
}

type Runner struct {
	client     ECSAPI
	waiter     Waiter
	logFetcher LogFetcher
	logPrinter LogPrinter
	options    Options
	logger     *slog.Logger
	newToken   func() string
}

func NewRunner(client ECSAPI, waiter Waiter, options Options, logger *slog.Logger) *Runner {
	if options.MaxWait <= 0 {
		options.MaxWait = DefaultMaxWait
	}
	return &Runner{
		client:   client,
		waiter:   waiter,
		options:  options,
		logger:   logger,
		newToken: uuid.NewString,
	}
}

// WithLogs sets where container logs are read from and written to when Options.PrintLogs is set.
func (r *Runner) WithLogs(fetcher LogFetcher, printer LogPrinter) *Runner {
	r.logFetcher = fetcher
	r.logPrinter = printer
	return r
}

// Run launches exactly one task. If Run fails after the launch the task is left as it is, unless
// Options.StopOnFailure is set and the task had not yet stopped.
func (r *Runner) Run(ctx context.Context, params Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	logger := r.logger.With(slog.String("cluster", params.Cluster), slog.String("service", params.Service))
	logger.Info("running command on ECS service", slog.String("command", params.Command))

	vpcConfig, err := r.networkConfiguration(ctx, params)
	if err != nil {
		return nil, err
	}

	taskARN, err := r.launch(ctx, params, vpcConfig, logger)
	if err != nil {
		return nil, err
	}
	logger = logger.With(slog.String("taskArn", taskARN))

	if err := r.waiter.WaitRunning(ctx, params.Cluster, taskARN, r.options.MaxWait); err != nil {
		r.stopOnFailure(params.Cluster, taskARN, err, logger)
		return nil, fmt.Errorf("error waiting for task %s to start running: %w", taskARN, err)
	}
	logger.Info("task is running, waiting for it to stop")

	if err := r.waiter.WaitStopped(ctx, params.Cluster, taskARN, r.options.MaxWait); err != nil {
		r.stopOnFailure(params.Cluster, taskARN, err, logger)
		return nil, fmt.Errorf("error waiting for task %s to stop: %w", taskARN, err)
	}
	logger.Info("task stopped")

	return r.evaluate(ctx, params, taskARN, logger)
}

func (r *Runner) networkConfiguration(ctx context.Context, params Params) (*types.AwsVpcConfiguration, error) {
	out, err := r.client.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(params.Cluster),
		Services: []string{params.Service},
	})
	if err != nil {
		var clusterNotFound *types.ClusterNotFoundException
		if errors.As(err, &clusterNotFound) {
			return nil, fmt.Errorf("%w: cluster %s does not exist: %w", ErrServiceNotFound, params.Cluster, err)
		}
		return nil, fmt.Errorf("error describing service %s: %w", params.Service, err)
	}
	if len(out.Services) == 0 {
		return nil, withFailures(ErrServiceNotFound,
			fmt.Sprintf("no service %s in cluster %s", params.Service, params.Cluster), out.Failures)
	}
	service := out.Services[0]
	if service.NetworkConfiguration == nil || service.NetworkConfiguration.AwsvpcConfiguration == nil {
		return nil, fmt.Errorf("%w %s", ErrMissingNetworkConfig, params.Service)
	}
	return service.NetworkConfiguration.AwsvpcConfiguration, nil
}

func (r *Runner) launch(ctx context.Context, params Params, vpcConfig *types.AwsVpcConfiguration, logger *slog.Logger) (string, error) {
	out, err := r.client.RunTask(ctx, r.runTaskInput(params, vpcConfig))
	if err != nil {
		return "", fmt.Errorf("error starting task from %s: %w", params.TaskDefinition, err)
	}
	if len(out.Tasks) == 0 {
		return "", withFailures(ErrLaunchFailed, "ECS runTask returned no tasks", out.Failures)
	}
	task := out.Tasks[0]
	taskARN := aws.ToString(task.TaskArn)
	if len(taskARN) == 0 {
		return "", withFailures(ErrLaunchFailed, "ECS runTask returned a task without an ARN", out.Failures)
	}
	logger.Info("task started", taskLogGroup(task))
	for i := 1; i < len(out.Tasks); i++ {
		logger.Warn("unexpected additional tasks started", taskLogGroup(out.Tasks[i]))
	}
	if len(out.Failures) > 0 {
		logger.Warn("task started, but there were failures", slog.String("failures", describeFailures(out.Failures)))
	}
	return taskARN, nil
}

func (r *Runner) runTaskInput(params Params, vpcConfig *types.AwsVpcConfiguration) *ecs.RunTaskInput {
	return &ecs.RunTaskInput{
		Cluster:        aws.String(params.Cluster),
		TaskDefinition: aws.String(params.TaskDefinition),
		LaunchType:     types.LaunchTypeFargate,
		NetworkConfiguration: &types.NetworkConfiguration{
			AwsvpcConfiguration: &types.AwsVpcConfiguration{
				Subnets:        vpcConfig.Subnets,
				SecurityGroups: vpcConfig.SecurityGroups,
				AssignPublicIp: types.AssignPublicIpEnabled,
			},
		},
		Overrides: &types.TaskOverride{
			ContainerOverrides: []types.ContainerOverride{
				{
					Name:    aws.String(params.ContainerName),
					Command: SplitCommand(params.Command),
				},
			},
		},
		StartedBy:   aws.String(StartedBy),
		ClientToken: aws.String(r.newToken()),
	}
}

func (r *Runner) evaluate(ctx context.Context, params Params, taskARN string, logger *slog.Logger) (*Result, error) {
	out, err := r.client.DescribeTasks(ctx, &ecs.DescribeTasksInput{
		Cluster: aws.String(params.Cluster),
		Tasks:   []string{taskARN},
	})
	if err != nil {
		return nil, fmt.Errorf("error describing task %s: %w", taskARN, err)
	}
	if len(out.Tasks) == 0 {
		return nil, withFailures(ErrTaskNotFound, taskARN, out.Failures)
	}
	task := out.Tasks[0]
	stoppedReason := aws.ToString(task.StoppedReason)
	logger.Info("final task status", taskLogGroup(task), slog.String("stoppedReason", stoppedReason))

	container, found := findContainer(task.Containers, params.ContainerName)
	if !found {
		return nil, fmt.Errorf("%w: task %s has no container named %s", ErrMissingContainerResult, taskARN, params.ContainerName)
	}
	if r.options.PrintLogs {
		r.printLogs(ctx, task, params.ContainerName, logger)
	}
	if container.ExitCode == nil {
		return nil, fmt.Errorf("%w: container %s has no exit code (reason: %s, task stopped reason: %s)",
			ErrMissingContainerResult, params.ContainerName, aws.ToString(container.Reason), stoppedReason)
	}
	exitCode := aws.ToInt32(container.ExitCode)
	if exitCode != 0 {
		return nil, &CommandFailedError{ContainerName: params.ContainerName, ExitCode: exitCode}
	}
	logger.Info("command ran successfully",
		slog.String("command", params.Command),
		slog.String("container", params.ContainerName))
	return &Result{
		TaskARN:       taskARN,
		ContainerName: params.ContainerName,
		ExitCode:      exitCode,
		StoppedReason: stoppedReason,
	}, nil
}

func (r *Runner) printLogs(ctx context.Context, task types.Task, containerName string, logger *slog.Logger) {
	if r.logFetcher == nil || r.logPrinter == nil {
		logger.Warn("container logs requested, but no log source is configured")
		return
	}
	lines, err := r.logFetcher.FetchLogs(ctx, task, containerName)
	if err != nil {
		logger.Warn("unable to fetch container logs", slog.Any("error", err))
		return
	}
	r.logPrinter.PrintLogs(containerName, lines)
}

// stopOnFailure makes one attempt to stop a task the Runner is abandoning. Errors are logged, not returned,
// so that the caller still sees the error that caused the Runner to give up.
func (r *Runner) stopOnFailure(cluster, taskARN string, cause error, logger *slog.Logger) {
	if !r.options.StopOnFailure {
		logger.Warn("leaving task in its current state", slog.Any("error", cause))
		return
	}
	// The run's context may be the reason we are here.
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	reason := fmt.Sprintf("%s: %v", StartedBy, cause)
	if len(reason) > maxStopReasonSize {
		reason = reason[:maxStopReasonSize]
	}
	if _, err := r.client.StopTask(ctx, &ecs.StopTaskInput{
		Cluster: aws.String(cluster),
		Task:    aws.String(taskARN),
		Reason:  aws.String(reason),
	}); err != nil {
		logger.Error("error stopping task", slog.Any("error", err), slog.String("errorCode", APIErrorCode(err)))
		return
	}
	logger.Info("stopped task after failure")
}

func findContainer(containers []types.Container, name string) (types.Container, bool) {
	for _, container := range containers {
		if aws.ToString(container.Name) == name {
			return container, true
		}
	}
	return types.Container{}, false
}

// taskLogGroup returns a view of a types.Task as a slog.Group for structured logging
func taskLogGroup(task types.Task) slog.Attr {
	return slog.Group("task",
		slog.String("arn", aws.ToString(task.TaskArn)),
		slog.String("lastStatus", aws.ToString(task.LastStatus)),
	)
}
