package taskrunner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/smithy-go"
)

var (
	ErrServiceNotFound        = errors.New("service not found")
	ErrMissingNetworkConfig   = errors.New("no awsvpc network configuration found for service")
	ErrLaunchFailed           = errors.New("task launch failed")
	ErrWaitTimeout            = errors.New("timed out waiting for task")
	ErrTaskNotFound           = errors.New("task not found")
	ErrMissingContainerResult = errors.New("missing container result")
	ErrCommandFailed          = errors.New("command failed")
)

// CommandFailedError is returned when the target container exits with a non-zero code.
// errors.Is(err, ErrCommandFailed) is true for it.
type CommandFailedError struct {
	ContainerName string
	ExitCode      int32
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("command failed with exit code: %d", e.ExitCode)
}

func (e *CommandFailedError) Is(target error) bool {
	return target == ErrCommandFailed
}

// APIErrorCode returns the error code of the AWS API error wrapped by err, or an empty string if there is none.
func APIErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// describeFailures formats the failures ECS returns alongside (or instead of) the requested resources.
func describeFailures(failures []types.Failure) string {
	var failMsgs []string
	for _, fail := range failures {
		failMsgs = append(failMsgs, fmt.Sprintf("[arn: %s, reason: %s, detail: %s]",
			aws.ToString(fail.Arn),
			aws.ToString(fail.Reason),
			aws.ToString(fail.Detail)))
	}
	return strings.Join(failMsgs, ", ")
}

func withFailures(err error, subject string, failures []types.Failure) error {
	if len(failures) == 0 {
		return fmt.Errorf("%w: %s", err, subject)
	}
	return fmt.Errorf("%w: %s: %s", err, subject, describeFailures(failures))
}
