package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bennettrogers/run-ecs-task-action/actionio"
	"github.com/bennettrogers/run-ecs-task-action/awsconfig"
	"github.com/bennettrogers/run-ecs-task-action/taskrunner"
	"github.com/bennettrogers/run-ecs-task-action/test"
	"github.com/sethvargo/go-githubactions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTaskARN           = "arn:aws:ecs:us-east-1:123456789012:task/production/0123456789abcdef"
	testTaskDefinitionARN = "arn:aws:ecs:us-east-1:123456789012:task-definition/api-migrate:3"
)

type actionEnv struct {
	vars       map[string]string
	out        bytes.Buffer
	outputFile string
}

func newActionEnv(t *testing.T, inputs map[string]string) *actionEnv {
	env := &actionEnv{
		vars:       map[string]string{},
		outputFile: filepath.Join(t.TempDir(), "output"),
	}
	require.NoError(t, os.WriteFile(env.outputFile, nil, 0o644))
	env.vars["GITHUB_OUTPUT"] = env.outputFile
	for name, value := range inputs {
		env.vars["INPUT_"+strings.ToUpper(name)] = value
	}
	return env
}

func (e *actionEnv) action() *actionio.IO {
	return actionio.New(
		githubactions.WithWriter(&e.out),
		githubactions.WithGetenv(func(key string) string { return e.vars[key] }),
	)
}

func (e *actionEnv) outputs(t *testing.T) string {
	written, err := os.ReadFile(e.outputFile)
	require.NoError(t, err)
	return string(written)
}

func requiredInputs() map[string]string {
	return map[string]string{
		"ecsCluster":        "production",
		"ecsService":        "api",
		"ecsTaskDefinition": "api-migrate:3",
		"ecsContainerName":  "app",
		"command":           "bin/migrate --env production",
	}
}

// setTestAWSConfig points the handler's AWS clients at fixture.
func setTestAWSConfig(t *testing.T, fixture *test.AWSJSONFixture) {
	awsConfig := test.NewAWSEndpoints(t).
		WithECS(fixture.Server.URL).
		WithCloudWatchLogs(fixture.Server.URL).
		Config(testContext(t), false)
	awsConfigFactory = awsconfig.NewFactory("")
	awsConfigFactory.Set(&awsConfig)
	t.Cleanup(func() { awsConfigFactory = nil })
}

func handleService(fixture *test.AWSJSONFixture) {
	fixture.HandleModel("DescribeServices", map[string]any{
		"services": []map[string]any{{
			"serviceName": "api",
			"networkConfiguration": map[string]any{
				"awsvpcConfiguration": map[string]any{
					"subnets":        []string{"subnet-a", "subnet-b"},
					"securityGroups": []string{"sg-api"},
					"assignPublicIp": "DISABLED",
				},
			},
		}},
	})
	fixture.HandleModel("RunTask", map[string]any{
		"tasks": []map[string]any{{"taskArn": testTaskARN, "lastStatus": "PROVISIONING"}},
	})
}

func handleStoppedTask(fixture *test.AWSJSONFixture, exitCode int) {
	fixture.HandleModel("DescribeTasks", map[string]any{
		"tasks": []map[string]any{{
			"taskArn":           testTaskARN,
			"taskDefinitionArn": testTaskDefinitionARN,
			"lastStatus":        "STOPPED",
			"stoppedReason":     "Essential container in task exited",
			"containers": []map[string]any{
				{"name": "log-router", "exitCode": 0},
				{"name": "app", "exitCode": exitCode},
			},
		}},
	})
}

func TestRunTaskHandler(t *testing.T) {
	test.SetLogLevel(t, slog.LevelDebug)
	fixture := test.NewAWSJSONFixture(t)
	defer fixture.Teardown()
	setTestAWSConfig(t, fixture)
	handleService(fixture)
	handleStoppedTask(fixture, 0)

	env := newActionEnv(t, requiredInputs())
	require.NoError(t, RunTaskHandler(testContext(t), env.action()))

	assert.Contains(t, env.outputs(t), actionio.TaskARNOutput)
	assert.Contains(t, env.outputs(t), testTaskARN)
	assert.NotContains(t, env.out.String(), "::error")

	services := fixture.Requests("DescribeServices")
	require.Len(t, services, 1)
	assert.Equal(t, "production", services[0]["cluster"])
	assert.Equal(t, []any{"api"}, services[0]["services"])

	runTasks := fixture.Requests("RunTask")
	require.Len(t, runTasks, 1)
	runTask := runTasks[0]
	assert.Equal(t, "api-migrate:3", runTask["taskDefinition"])
	assert.Equal(t, "FARGATE", runTask["launchType"])
	assert.Equal(t, taskrunner.StartedBy, runTask["startedBy"])
	assert.NotEmpty(t, runTask["clientToken"])
	assert.Equal(t, map[string]any{
		"awsvpcConfiguration": map[string]any{
			"subnets":        []any{"subnet-a", "subnet-b"},
			"securityGroups": []any{"sg-api"},
			"assignPublicIp": "ENABLED",
		},
	}, runTask["networkConfiguration"])
	assert.Equal(t, map[string]any{
		"containerOverrides": []any{map[string]any{
			"name":    "app",
			"command": []any{"bin/migrate", "--env", "production"},
		}},
	}, runTask["overrides"])

	// one DescribeTasks each for the running wait, the stopped wait and the final status
	assert.Len(t, fixture.Requests("DescribeTasks"), 3)
	assert.Empty(t, fixture.Requests("StopTask"))
}

func TestRunTaskHandler_CommandFailed(t *testing.T) {
	fixture := test.NewAWSJSONFixture(t)
	defer fixture.Teardown()
	setTestAWSConfig(t, fixture)
	handleService(fixture)
	handleStoppedTask(fixture, 137)

	env := newActionEnv(t, requiredInputs())
	err := RunTaskHandler(testContext(t), env.action())

	var commandFailed *taskrunner.CommandFailedError
	require.ErrorAs(t, err, &commandFailed)
	assert.Equal(t, int32(137), commandFailed.ExitCode)
	assert.ErrorIs(t, err, taskrunner.ErrCommandFailed)

	assert.Contains(t, env.out.String(), "::error")
	assert.Contains(t, env.out.String(), "command failed with exit code: 137")
	assert.NotContains(t, env.outputs(t), testTaskARN)
}

func TestRunTaskHandler_PrintLogs(t *testing.T) {
	fixture := test.NewAWSJSONFixture(t)
	defer fixture.Teardown()
	setTestAWSConfig(t, fixture)
	handleService(fixture)
	handleStoppedTask(fixture, 0)
	fixture.HandleModel("DescribeTaskDefinition", map[string]any{
		"taskDefinition": map[string]any{
			"taskDefinitionArn": testTaskDefinitionARN,
			"containerDefinitions": []map[string]any{{
				"name": "app",
				"logConfiguration": map[string]any{
					"logDriver": "awslogs",
					"options": map[string]string{
						"awslogs-group":         "/ecs/api",
						"awslogs-stream-prefix": "ecs",
					},
				},
			}},
		},
	})
	fixture.HandleModel("GetLogEvents", map[string]any{
		"events": []map[string]any{
			{"timestamp": 1, "message": "applying migration 42"},
			{"timestamp": 2, "message": "migrations complete"},
		},
		"nextForwardToken": "f/1",
	})

	inputs := requiredInputs()
	inputs["printLogs"] = "true"
	env := newActionEnv(t, inputs)
	require.NoError(t, RunTaskHandler(testContext(t), env.action()))

	assert.Contains(t, env.out.String(), "::group::Logs of container app")
	assert.Contains(t, env.out.String(), "applying migration 42")
	assert.Contains(t, env.out.String(), "migrations complete")

	logRequests := fixture.Requests("GetLogEvents")
	require.NotEmpty(t, logRequests)
	assert.Equal(t, "/ecs/api", logRequests[0]["logGroupName"])
	assert.Equal(t, "ecs/app/0123456789abcdef", logRequests[0]["logStreamName"])
}

func TestRunTaskHandler_MissingInput(t *testing.T) {
	fixture := test.NewAWSJSONFixture(t)
	defer fixture.Teardown()
	setTestAWSConfig(t, fixture)

	inputs := requiredInputs()
	delete(inputs, "command")
	env := newActionEnv(t, inputs)
	err := RunTaskHandler(testContext(t), env.action())

	require.ErrorContains(t, err, "required input command is not set")
	assert.Contains(t, env.out.String(), "::error")
	assert.Empty(t, fixture.Requests("DescribeServices"))
	assert.Empty(t, fixture.Requests("RunTask"))
}

func TestRunTaskHandler_StopOnFailure(t *testing.T) {
	fixture := test.NewAWSJSONFixture(t)
	defer fixture.Teardown()
	setTestAWSConfig(t, fixture)
	handleService(fixture)
	fixture.HandleModel("DescribeTasks", map[string]any{
		"tasks":    []any{},
		"failures": []map[string]any{{"arn": testTaskARN, "reason": "MISSING"}},
	})
	fixture.HandleModel("StopTask", map[string]any{
		"task": map[string]any{"taskArn": testTaskARN, "lastStatus": "STOPPED"},
	})

	inputs := requiredInputs()
	inputs["stopTaskOnFailure"] = "true"
	env := newActionEnv(t, inputs)
	err := RunTaskHandler(testContext(t), env.action())

	require.ErrorIs(t, err, taskrunner.ErrTaskNotFound)
	stops := fixture.Requests("StopTask")
	require.Len(t, stops, 1)
	assert.Equal(t, "production", stops[0]["cluster"])
	assert.Equal(t, testTaskARN, stops[0]["task"])
}
