// Chatrelay CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
// It is the main harness for handling nearly all dev operations.
package main

import (
	"context"

	"dagger/chatrelay/internal/dagger"
)

// Chatrelay is the main module for the chatrelay CI/CD pipeline
type Chatrelay struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Chatrelay CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *Chatrelay {
	return &Chatrelay{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc,
// libsqlite3-dev, CGO enabled, and the project source mounted.
//
// It is the shared foundation for tests, builds, and linting.
func (c *Chatrelay) goContainer() *dagger.Container {
	return c.goContainerFor("")
}

// goContainerFor is goContainer pinned to a platform. The sqlite driver
// needs cgo, so binaries are built natively per platform instead of
// cross-compiled.
func (c *Chatrelay) goContainerFor(platform dagger.Platform) *dagger.Container {
	return dag.Container(dagger.ContainerOpts{Platform: platform}).
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", c.Source)
}

// Test runs the chatrelay unit tests via "go test"
func (c *Chatrelay) Test(ctx context.Context) (string, error) {
	return c.goContainer().
		WithExec([]string{"go", "test", "-v", "-timeout", "5m", "./..."}).
		Stdout(ctx)
}

// TestIntegration runs the backend-bound tests against throwaway postgres,
// redis and kafka services. Those tests skip themselves in plain "go test".
func (c *Chatrelay) TestIntegration(ctx context.Context) (string, error) {
	db := dag.Container().
		From("postgres:16-alpine").
		WithEnvVariable("POSTGRES_USER", "chatrelay").
		WithEnvVariable("POSTGRES_PASSWORD", "chatrelay").
		WithEnvVariable("POSTGRES_DB", "chatrelay").
		WithExposedPort(5432).
		AsService()

	cache := dag.Container().
		From("redis:7-alpine").
		WithExposedPort(6379).
		AsService()

	broker := dag.Container().
		From("apache/kafka:3.9.0").
		WithEnvVariable("KAFKA_NODE_ID", "1").
		WithEnvVariable("KAFKA_PROCESS_ROLES", "broker,controller").
		WithEnvVariable("KAFKA_LISTENERS", "PLAINTEXT://:9092,CONTROLLER://:9093").
		WithEnvVariable("KAFKA_ADVERTISED_LISTENERS", "PLAINTEXT://kafka:9092").
		WithEnvVariable("KAFKA_CONTROLLER_LISTENER_NAMES", "CONTROLLER").
		WithEnvVariable("KAFKA_CONTROLLER_QUORUM_VOTERS", "1@localhost:9093").
		WithEnvVariable("KAFKA_OFFSETS_TOPIC_REPLICATION_FACTOR", "1").
		WithEnvVariable("KAFKA_AUTO_CREATE_TOPICS_ENABLE", "true").
		WithExposedPort(9092).
		AsService()

	return c.goContainer().
		WithServiceBinding("db", db).
		WithServiceBinding("redis", cache).
		WithServiceBinding("kafka", broker).
		WithEnvVariable("CHATRELAY_TEST_POSTGRES_DSN", "postgres://chatrelay:chatrelay@db:5432/chatrelay?sslmode=disable").
		WithEnvVariable("CHATRELAY_TEST_REDIS_ADDR", "redis:6379").
		WithEnvVariable("CHATRELAY_TEST_KAFKA_BROKERS", "kafka:9092").
		WithExec([]string{
			"go", "test", "-v", "-timeout", "10m",
			"./pkg/storage/postgres/...",
			"./pkg/cache/redis/...",
			"./pkg/eventstream/kafka/...",
		}).
		Stdout(ctx)
}
