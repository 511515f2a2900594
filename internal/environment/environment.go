// Package environment classifies the running deployment and exposes the
// security posture derived from it. The policy is built once at startup and
// injected into every component that needs it; business logic never reads
// process environment variables directly.
package environment

import (
	"fmt"
	"strings"

	apperrors "github.com/phivault/phivault/internal/errors"
)

// Environment identifies the deployment target the process runs in.
type Environment string

const (
	// Development permits ephemeral master key generation.
	Development Environment = "development"

	// Testing behaves like production for master key validation.
	Testing Environment = "testing"

	// Staging behaves like production for master key validation, because
	// staging data may alias production expectations.
	Staging Environment = "staging"

	// Production requires an externally supplied master key and refuses to
	// start without one.
	Production Environment = "production"
)

// ErrUnknownEnvironment indicates the configured environment name is not one of
// the known deployment targets. An indeterminate environment halts startup
// rather than silently assuming a posture.
var ErrUnknownEnvironment = apperrors.Wrap(apperrors.ErrFatal, "unknown environment")

// Parse converts a configured environment name into an Environment.
// Matching is case-insensitive and ignores surrounding whitespace.
func Parse(value string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(value))) {
	case Development:
		return Development, nil
	case Testing:
		return Testing, nil
	case Staging:
		return Staging, nil
	case Production:
		return Production, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEnvironment, value)
	}
}

// Policy exposes the security posture of the current deployment.
type Policy struct {
	env Environment
}

// NewPolicy creates a Policy for the given environment.
func NewPolicy(env Environment) Policy {
	return Policy{env: env}
}

// Current returns the environment this policy was built for.
func (p Policy) Current() Environment {
	return p.env
}

// AllowEphemeralMasterKey reports whether the deployment may synthesize a
// master key instead of requiring an externally supplied one. Only development
// deployments are permitted to do so.
func (p Policy) AllowEphemeralMasterKey() bool {
	return p.env == Development
}
