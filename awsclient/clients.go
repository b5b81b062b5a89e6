// Package awsclient builds the AWS service clients used by the task runner.
//
// An endpoint URL, when given, replaces the resolved service endpoint so that the runner can be pointed at a
// simulator or a local test server. Credentials and region still come from the aws.Config.
package awsclient

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
)

func NewECS(awsConfig aws.Config, endpointURL string) *ecs.Client {
	if len(endpointURL) == 0 {
		return ecs.NewFromConfig(awsConfig)
	}
	return ecs.NewFromConfig(awsConfig, func(o *ecs.Options) {
		o.BaseEndpoint = aws.String(endpointURL)
	})
}

func NewCloudWatchLogs(awsConfig aws.Config, endpointURL string) *cloudwatchlogs.Client {
	if len(endpointURL) == 0 {
		return cloudwatchlogs.NewFromConfig(awsConfig)
	}
	return cloudwatchlogs.NewFromConfig(awsConfig, func(o *cloudwatchlogs.Options) {
		o.BaseEndpoint = aws.String(endpointURL)
	})
}
