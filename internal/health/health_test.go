package health

import (
	"context"
	"testing"
)

// checker is the shape both checkers share; the handlers depend on it
// structurally via the api package.
type checker interface {
	HealthCheck(ctx context.Context) error
}

func TestCheckersSatisfyInterface(t *testing.T) {
	var _ checker = (*DBChecker)(nil)
	var _ checker = (*RedisChecker)(nil)
}
