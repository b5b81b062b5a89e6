package test

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	awslogging "github.com/aws/smithy-go/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AWSEndpoints builds an aws.Config whose service endpoints point at test servers.
type AWSEndpoints struct {
	testingT            require.TestingT
	serviceIDToEndpoint map[string]aws.Endpoint
}

func NewAWSEndpoints(t require.TestingT) *AWSEndpoints {
	return &AWSEndpoints{
		testingT:            t,
		serviceIDToEndpoint: map[string]aws.Endpoint{},
	}
}

func (e *AWSEndpoints) WithECS(ecsURL string) *AWSEndpoints {
	e.serviceIDToEndpoint[ecs.ServiceID] = aws.Endpoint{URL: ecsURL}
	return e
}

func (e *AWSEndpoints) WithCloudWatchLogs(logsURL string) *AWSEndpoints {
	e.serviceIDToEndpoint[cloudwatchlogs.ServiceID] = aws.Endpoint{URL: logsURL}
	return e
}

// Config returns an aws.Config with static credentials. Requests to services without an endpoint fail.
func (e *AWSEndpoints) Config(ctx context.Context, logRequests bool) aws.Config {
	optFns := []func(options *config.LoadOptions) error{
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test-key", "test-secret", "")),
		config.WithRetryMaxAttempts(1),
		config.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if endpoint, ok := e.serviceIDToEndpoint[service]; ok {
				return endpoint, nil
			}
			return aws.Endpoint{}, fmt.Errorf("no test endpoint has been set for AWS serviceID: %s", service)
		})),
	}
	if logRequests {
		awsLogger := awslogging.NewStandardLogger(log.Writer())
		optFns = append(optFns, config.WithLogger(awsLogger), config.WithClientLogMode(aws.LogRequestWithBody))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		assert.FailNow(e.testingT, "error creating AWS config", err)
	}
	return awsConfig
}
