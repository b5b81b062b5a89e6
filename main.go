package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bennettrogers/run-ecs-task-action/actionio"
	"github.com/bennettrogers/run-ecs-task-action/awsclient"
	"github.com/bennettrogers/run-ecs-task-action/awsconfig"
	"github.com/bennettrogers/run-ecs-task-action/config"
	"github.com/bennettrogers/run-ecs-task-action/logging"
	"github.com/bennettrogers/run-ecs-task-action/taskrunner"
)

// awsConfigFactory stays nil until the inputs name the region, unless a test sets it first to point the
// clients at test servers.
var awsConfigFactory *awsconfig.Factory

func main() {
	// The os.Exit call below makes this function untestable. All the logic is in RunTaskHandler.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := RunTaskHandler(ctx, actionio.New())
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// RunTaskHandler runs the task described by the action's inputs and publishes its ARN as the taskArn output.
// Any error has already been logged and reported to the workflow when it is returned.
func RunTaskHandler(ctx context.Context, action *actionio.IO) error {
	if err := runTask(ctx, action); err != nil {
		logging.Default.Error("error running ECS task",
			slog.Any("error", err),
			slog.String("errorCode", taskrunner.APIErrorCode(err)))
		action.Fail(err)
		return err
	}
	return nil
}

func runTask(ctx context.Context, action *actionio.IO) error {
	cfg, err := config.LookupInputs(action)
	if err != nil {
		return fmt.Errorf("error reading inputs: %w", err)
	}
	if awsConfigFactory == nil {
		awsConfigFactory = awsconfig.NewFactory(cfg.AWSRegion)
	}
	awsConfig, err := awsConfigFactory.Get(ctx)
	if err != nil {
		return fmt.Errorf("error getting AWS config: %w", err)
	}

	ecsClient := awsclient.NewECS(*awsConfig, cfg.EndpointURL)
	runner := taskrunner.NewRunner(ecsClient, taskrunner.NewECSWaiter(ecsClient, 0, 0), cfg.Options, logging.Default)
	if cfg.Options.PrintLogs {
		logsClient := awsclient.NewCloudWatchLogs(*awsConfig, cfg.EndpointURL)
		runner.WithLogs(taskrunner.NewCloudWatchLogFetcher(ecsClient, logsClient), action)
	}

	result, err := runner.Run(ctx, cfg.Params)
	if err != nil {
		return err
	}
	action.SetTaskARN(result.TaskARN)
	action.Summarize(cfg.Params, result)
	return nil
}
