package awsconfig

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// DefaultRegion is used when neither the caller nor the SDK's default chain supplies a region.
const DefaultRegion = "us-east-1"

// Factory loads the AWS config on the first call to Get and returns the same instance afterwards.
// Tests replace the loaded config with Set.
type Factory struct {
	region    string
	awsConfig *aws.Config
}

// NewFactory returns a Factory. An empty region leaves region resolution to the SDK (AWS_REGION, shared
// config files) and then to DefaultRegion.
func NewFactory(region string) *Factory {
	return &Factory{region: region}
}

func (f *Factory) Get(ctx context.Context) (*aws.Config, error) {
	if f.awsConfig == nil {
		var optFns []func(*config.LoadOptions) error
		if len(f.region) > 0 {
			optFns = append(optFns, config.WithRegion(f.region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, optFns...)
		if err != nil {
			return nil, fmt.Errorf("error loading default AWS config: %w", err)
		}
		if len(cfg.Region) == 0 {
			cfg.Region = DefaultRegion
		}
		f.awsConfig = &cfg
	}
	return f.awsConfig, nil
}

func (f *Factory) Set(awsConfig *aws.Config) {
	f.awsConfig = awsConfig
}
