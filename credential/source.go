package credential

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Source produces a credential.
type Source interface {
	Credential(ctx context.Context) (string, error)
}

// Static is a credential known up front. An empty Static is valid and
// means the engine runs unauthenticated.
type Static string

func (s Static) Credential(context.Context) (string, error) {
	return string(s), nil
}

// Env reads the credential from an environment variable.
type Env string

func (e Env) Credential(context.Context) (string, error) {
	name := strings.TrimSpace(string(e))
	if name == "" {
		return "", ErrNameRequired
	}
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("%w: environment variable %s", ErrNotFound, name)
	}
	return value, nil
}
