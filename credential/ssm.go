package credential

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the subset of *ssm.Client used by SSM.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSM reads the credential from an AWS Systems Manager parameter,
// decrypting SecureString values.
type SSM struct {
	api  ssmAPI
	name string
}

// NewSSM creates an SSM source over api for the named parameter.
func NewSSM(api ssmAPI, name string) (*SSM, error) {
	if api == nil {
		return nil, ErrAPIRequired
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	return &SSM{api: api, name: name}, nil
}

// NewSSMFromEnvironment creates an SSM source using the default AWS
// configuration chain (environment, shared config, instance role).
func NewSSMFromEnvironment(ctx context.Context, name string) (*SSM, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSSM(ssm.NewFromConfig(cfg), name)
}

func (s *SSM) Credential(ctx context.Context) (string, error) {
	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %q: %w", s.name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("%w: parameter %q has no value", ErrNotFound, s.name)
	}
	return *out.Parameter.Value, nil
}
