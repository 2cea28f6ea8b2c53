//go:build integration

// Package containers starts throwaway database servers for integration tests.
// Every helper skips the calling test when no Docker daemon is reachable.
package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

func skipWithoutDocker(ctx context.Context, t *testing.T) {
	t.Helper()
	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		t.Skip("Docker is not available - skipping integration test")
	}
	defer provider.Close()

	if _, err := provider.DaemonHost(ctx); err != nil {
		t.Skip("Docker is not available - skipping integration test")
	}
}
