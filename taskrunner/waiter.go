package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
)

const (
	statusRunning = "RUNNING"
	statusStopped = "STOPPED"
	reasonMissing = "MISSING"

	DefaultMinPollDelay = 6 * time.Second
	DefaultMaxPollDelay = 30 * time.Second
)

// Waiter blocks until a task reaches a lifecycle checkpoint or maxWait elapses. Exceeding maxWait is
// reported as ErrWaitTimeout.
type Waiter interface {
	WaitRunning(ctx context.Context, cluster, taskARN string, maxWait time.Duration) error
	WaitStopped(ctx context.Context, cluster, taskARN string, maxWait time.Duration) error
}

// ECSWaiter polls DescribeTasks using the SDK's task waiters.
type ECSWaiter struct {
	client   ecs.DescribeTasksAPIClient
	minDelay time.Duration
	maxDelay time.Duration
}

// NewECSWaiter returns an ECSWaiter polling with a delay between minDelay and maxDelay. Zero values
// select DefaultMinPollDelay and DefaultMaxPollDelay.
func NewECSWaiter(client ecs.DescribeTasksAPIClient, minDelay, maxDelay time.Duration) *ECSWaiter {
	if minDelay <= 0 {
		minDelay = DefaultMinPollDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxPollDelay
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &ECSWaiter{client: client, minDelay: minDelay, maxDelay: maxDelay}
}

// WaitRunning returns once the task is RUNNING. A task that is already STOPPED has been through RUNNING
// (or never will be), either way there is nothing more to wait for before WaitStopped.
func (w *ECSWaiter) WaitRunning(ctx context.Context, cluster, taskARN string, maxWait time.Duration) error {
	waiter := ecs.NewTasksRunningWaiter(w.client, func(o *ecs.TasksRunningWaiterOptions) {
		o.MinDelay = w.minDelay
		o.MaxDelay = w.maxDelay
		o.Retryable = untilLastStatus(statusRunning, statusStopped)
	})
	err := waiter.Wait(ctx, describeTaskInput(cluster, taskARN), maxWait)
	return waitError(err, statusRunning, maxWait)
}

func (w *ECSWaiter) WaitStopped(ctx context.Context, cluster, taskARN string, maxWait time.Duration) error {
	waiter := ecs.NewTasksStoppedWaiter(w.client, func(o *ecs.TasksStoppedWaiterOptions) {
		o.MinDelay = w.minDelay
		o.MaxDelay = w.maxDelay
		o.Retryable = untilLastStatus(statusStopped)
	})
	err := waiter.Wait(ctx, describeTaskInput(cluster, taskARN), maxWait)
	return waitError(err, statusStopped, maxWait)
}

func describeTaskInput(cluster, taskARN string) *ecs.DescribeTasksInput {
	return &ecs.DescribeTasksInput{
		Cluster: aws.String(cluster),
		Tasks:   []string{taskARN},
	}
}

// untilLastStatus keeps the waiter polling until every described task has one of the accepted last statuses.
// A MISSING failure ends the wait with ErrTaskNotFound.
func untilLastStatus(accepted ...string) func(context.Context, *ecs.DescribeTasksInput, *ecs.DescribeTasksOutput, error) (bool, error) {
	return func(_ context.Context, _ *ecs.DescribeTasksInput, out *ecs.DescribeTasksOutput, err error) (bool, error) {
		if err != nil {
			return false, err
		}
		for _, failure := range out.Failures {
			if aws.ToString(failure.Reason) == reasonMissing {
				return false, withFailures(ErrTaskNotFound, aws.ToString(failure.Arn), out.Failures)
			}
		}
		if len(out.Tasks) == 0 {
			return true, nil
		}
		for _, task := range out.Tasks {
			if !slices.Contains(accepted, aws.ToString(task.LastStatus)) {
				return true, nil
			}
		}
		return false, nil
	}
}

func waitError(err error, status string, maxWait time.Duration) error {
	if err == nil {
		return nil
	}
	// The SDK reports an exhausted wait with a plain error.
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "exceeded max wait time") {
		return fmt.Errorf("%w: task did not reach %s within %s", ErrWaitTimeout, status, maxWait)
	}
	return err
}
