package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

const (
	awslogsGroupKey        = "awslogs-group"
	awslogsStreamPrefixKey = "awslogs-stream-prefix"

	maxLogPages = 1000
)

var ErrNoLogConfiguration = errors.New("container does not log to CloudWatch with a stream prefix")

// LogFetcher returns the log lines a container of a stopped task wrote.
type LogFetcher interface {
	FetchLogs(ctx context.Context, task types.Task, containerName string) ([]string, error)
}

// LogPrinter shows fetched container log lines to whoever watches the run.
type LogPrinter interface {
	PrintLogs(containerName string, lines []string)
}

// LogEventsGetter is the part of *cloudwatchlogs.Client the CloudWatchLogFetcher uses.
type LogEventsGetter interface {
	GetLogEvents(ctx context.Context, params *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
}

// CloudWatchLogFetcher reads the logs of containers using the awslogs log driver.
type CloudWatchLogFetcher struct {
	taskDefinitions TaskDefinitionDescriber
	logs            LogEventsGetter
}

func NewCloudWatchLogFetcher(taskDefinitions TaskDefinitionDescriber, logs LogEventsGetter) *CloudWatchLogFetcher {
	return &CloudWatchLogFetcher{taskDefinitions: taskDefinitions, logs: logs}
}

func (f *CloudWatchLogFetcher) FetchLogs(ctx context.Context, task types.Task, containerName string) ([]string, error) {
	group, stream, err := f.logStream(ctx, task, containerName)
	if err != nil {
		return nil, err
	}
	var lines []string
	var token *string
	for page := 0; page < maxLogPages; page++ {
		out, err := f.logs.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
			LogGroupName:  aws.String(group),
			LogStreamName: aws.String(stream),
			StartFromHead: aws.Bool(true),
			NextToken:     token,
		})
		if err != nil {
			return lines, fmt.Errorf("error getting log events from %s/%s: %w", group, stream, err)
		}
		for _, event := range out.Events {
			lines = append(lines, aws.ToString(event.Message))
		}
		// the forward token stays the same once the end of the stream is reached
		if out.NextForwardToken == nil || aws.ToString(out.NextForwardToken) == aws.ToString(token) {
			break
		}
		token = out.NextForwardToken
	}
	return lines, nil
}

func (f *CloudWatchLogFetcher) logStream(ctx context.Context, task types.Task, containerName string) (group, stream string, err error) {
	out, err := f.taskDefinitions.DescribeTaskDefinition(ctx, &ecs.DescribeTaskDefinitionInput{
		TaskDefinition: task.TaskDefinitionArn,
	})
	if err != nil {
		return "", "", fmt.Errorf("error describing task definition %s: %w", aws.ToString(task.TaskDefinitionArn), err)
	}
	if out.TaskDefinition == nil {
		return "", "", fmt.Errorf("%w: task definition %s not returned", ErrNoLogConfiguration, aws.ToString(task.TaskDefinitionArn))
	}
	for _, def := range out.TaskDefinition.ContainerDefinitions {
		if aws.ToString(def.Name) != containerName {
			continue
		}
		logConfig := def.LogConfiguration
		if logConfig == nil || logConfig.LogDriver != types.LogDriverAwslogs {
			return "", "", fmt.Errorf("%w: %s", ErrNoLogConfiguration, containerName)
		}
		group, prefix := logConfig.Options[awslogsGroupKey], logConfig.Options[awslogsStreamPrefixKey]
		if len(group) == 0 || len(prefix) == 0 {
			return "", "", fmt.Errorf("%w: %s", ErrNoLogConfiguration, containerName)
		}
		return group, fmt.Sprintf("%s/%s/%s", prefix, containerName, taskID(aws.ToString(task.TaskArn))), nil
	}
	return "", "", fmt.Errorf("%w: no container definition named %s", ErrNoLogConfiguration, containerName)
}

// taskID returns the last path segment of a task ARN: arn:aws:ecs:region:account:task/cluster/id
func taskID(taskARN string) string {
	return taskARN[strings.LastIndex(taskARN, "/")+1:]
}
