// Package mocks holds in-memory stand-ins for the ECS control plane and the task waiter.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// MockECSAPI answers each ECS call with the corresponding function field. A nil function means the call is not
// expected; it is recorded and answered with an empty output.
type MockECSAPI struct {
	DescribeServicesFunc func(*ecs.DescribeServicesInput) (*ecs.DescribeServicesOutput, error)
	RunTaskFunc          func(*ecs.RunTaskInput) (*ecs.RunTaskOutput, error)
	DescribeTasksFunc    func(*ecs.DescribeTasksInput) (*ecs.DescribeTasksOutput, error)
	StopTaskFunc         func(*ecs.StopTaskInput) (*ecs.StopTaskOutput, error)

	mu                    sync.Mutex
	DescribeServicesCalls []*ecs.DescribeServicesInput
	RunTaskCalls          []*ecs.RunTaskInput
	DescribeTasksCalls    []*ecs.DescribeTasksInput
	StopTaskCalls         []*ecs.StopTaskInput
}

func (m *MockECSAPI) DescribeServices(_ context.Context, params *ecs.DescribeServicesInput, _ ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error) {
	m.mu.Lock()
	m.DescribeServicesCalls = append(m.DescribeServicesCalls, params)
	m.mu.Unlock()
	if m.DescribeServicesFunc == nil {
		return &ecs.DescribeServicesOutput{}, nil
	}
	return m.DescribeServicesFunc(params)
}

func (m *MockECSAPI) RunTask(_ context.Context, params *ecs.RunTaskInput, _ ...func(*ecs.Options)) (*ecs.RunTaskOutput, error) {
	m.mu.Lock()
	m.RunTaskCalls = append(m.RunTaskCalls, params)
	m.mu.Unlock()
	if m.RunTaskFunc == nil {
		return &ecs.RunTaskOutput{}, nil
	}
	return m.RunTaskFunc(params)
}

func (m *MockECSAPI) DescribeTasks(_ context.Context, params *ecs.DescribeTasksInput, _ ...func(*ecs.Options)) (*ecs.DescribeTasksOutput, error) {
	m.mu.Lock()
	m.DescribeTasksCalls = append(m.DescribeTasksCalls, params)
	m.mu.Unlock()
	if m.DescribeTasksFunc == nil {
		return &ecs.DescribeTasksOutput{}, nil
	}
	return m.DescribeTasksFunc(params)
}

func (m *MockECSAPI) StopTask(_ context.Context, params *ecs.StopTaskInput, _ ...func(*ecs.Options)) (*ecs.StopTaskOutput, error) {
	m.mu.Lock()
	m.StopTaskCalls = append(m.StopTaskCalls, params)
	m.mu.Unlock()
	if m.StopTaskFunc == nil {
		return &ecs.StopTaskOutput{}, nil
	}
	return m.StopTaskFunc(params)
}

// WaitCall records one call to a MockWaiter method.
type WaitCall struct {
	Cluster string
	TaskARN string
	MaxWait time.Duration
}

// MockWaiter returns RunningErr and StoppedErr from WaitRunning and WaitStopped without blocking.
type MockWaiter struct {
	RunningErr error
	StoppedErr error

	RunningCalls []WaitCall
	StoppedCalls []WaitCall
}

func (w *MockWaiter) WaitRunning(_ context.Context, cluster, taskARN string, maxWait time.Duration) error {
	w.RunningCalls = append(w.RunningCalls, WaitCall{Cluster: cluster, TaskARN: taskARN, MaxWait: maxWait})
	return w.RunningErr
}

func (w *MockWaiter) WaitStopped(_ context.Context, cluster, taskARN string, maxWait time.Duration) error {
	w.StoppedCalls = append(w.StoppedCalls, WaitCall{Cluster: cluster, TaskARN: taskARN, MaxWait: maxWait})
	return w.StoppedErr
}

type MockLogFetcher struct {
	Lines []string
	Err   error
	Calls int
}

func (f *MockLogFetcher) FetchLogs(_ context.Context, _ types.Task, _ string) ([]string, error) {
	f.Calls++
	return f.Lines, f.Err
}

type MockLogPrinter struct {
	Printed map[string][]string
}

func (p *MockLogPrinter) PrintLogs(containerName string, lines []string) {
	if p.Printed == nil {
		p.Printed = map[string][]string{}
	}
	p.Printed[containerName] = append(p.Printed[containerName], lines...)
}
