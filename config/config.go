package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bennettrogers/run-ecs-task-action/taskrunner"
)

// Input names as declared in action.yml.
const (
	ServiceKey        = "ecsService"
	ClusterKey        = "ecsCluster"
	TaskDefinitionKey = "ecsTaskDefinition"
	ContainerNameKey  = "ecsContainerName"
	CommandKey        = "command"
	AWSRegionKey      = "awsRegion"
	MaxWaitSecondsKey = "maxWaitSeconds"
	StopOnFailureKey  = "stopTaskOnFailure"
	PrintLogsKey      = "printLogs"
	EndpointURLKey    = "endpointUrl"
)

// InputGetter returns the value of a named input, or an empty string if it was not given.
type InputGetter interface {
	GetInput(name string) string
}

type Config struct {
	Params  taskrunner.Params
	Options taskrunner.Options
	// AWSRegion is empty if the SDK should resolve the region itself.
	AWSRegion string
	// EndpointURL overrides the ECS and CloudWatch Logs endpoints if not empty.
	EndpointURL string
}

func LookupInputs(inputs InputGetter) (*Config, error) {
	params, err := paramsFromInputs(inputs)
	if err != nil {
		return nil, err
	}
	options, err := optionsFromInputs(inputs)
	if err != nil {
		return nil, err
	}
	return &Config{
		Params:      *params,
		Options:     *options,
		AWSRegion:   inputs.GetInput(AWSRegionKey),
		EndpointURL: inputs.GetInput(EndpointURLKey),
	}, nil
}

func paramsFromInputs(inputs InputGetter) (*taskrunner.Params, error) {
	service, err := requiredInput(inputs, ServiceKey)
	if err != nil {
		return nil, err
	}
	cluster, err := requiredInput(inputs, ClusterKey)
	if err != nil {
		return nil, err
	}
	taskDefinition, err := requiredInput(inputs, TaskDefinitionKey)
	if err != nil {
		return nil, err
	}
	containerName, err := requiredInput(inputs, ContainerNameKey)
	if err != nil {
		return nil, err
	}
	command, err := requiredInput(inputs, CommandKey)
	if err != nil {
		return nil, err
	}
	return &taskrunner.Params{
		Cluster:        cluster,
		Service:        service,
		TaskDefinition: taskDefinition,
		ContainerName:  containerName,
		Command:        command,
	}, nil
}

func optionsFromInputs(inputs InputGetter) (*taskrunner.Options, error) {
	options := &taskrunner.Options{MaxWait: taskrunner.DefaultMaxWait}
	if value := inputs.GetInput(MaxWaitSecondsKey); len(value) > 0 {
		seconds, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("error converting input %s value [%s] to int: %w", MaxWaitSecondsKey, value, err)
		}
		if seconds <= 0 {
			return nil, fmt.Errorf("input %s must be positive, got %d", MaxWaitSecondsKey, seconds)
		}
		options.MaxWait = time.Duration(seconds) * time.Second
	}
	var err error
	if options.StopOnFailure, err = boolInput(inputs, StopOnFailureKey); err != nil {
		return nil, err
	}
	if options.PrintLogs, err = boolInput(inputs, PrintLogsKey); err != nil {
		return nil, err
	}
	return options, nil
}

func requiredInput(inputs InputGetter, name string) (string, error) {
	value := inputs.GetInput(name)
	if len(value) == 0 {
		return "", fmt.Errorf("required input %s is not set", name)
	}
	return value, nil
}

// boolInput accepts the YAML 1.2 core schema booleans, like the toolkit's getBooleanInput. Unset means false.
func boolInput(inputs InputGetter, name string) (bool, error) {
	switch value := inputs.GetInput(name); value {
	case "":
		return false, nil
	case "true", "True", "TRUE":
		return true, nil
	case "false", "False", "FALSE":
		return false, nil
	default:
		return false, fmt.Errorf("input %s must be one of true|True|TRUE|false|False|FALSE, got %q", name, value)
	}
}
