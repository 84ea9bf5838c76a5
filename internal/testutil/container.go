package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const startupTimeout = 30 * time.Second

// Backend is a disposable container plus the URL the console should dial.
type Backend struct {
	testcontainers.Container
	URL string
}

// NewPostgresContainer starts the settings database.
func NewPostgresContainer(ctx context.Context) (*Backend, error) {
	pg, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("console"),
		postgres.WithUsername("console"),
		postgres.WithPassword("console"),
		testcontainers.WithWaitStrategy(
			// postgres logs readiness once during init and again after restart
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(startupTimeout),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pg.Terminate(ctx)
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	return &Backend{Container: pg, URL: dsn}, nil
}

// NewRedisContainer starts the session revocation store.
func NewRedisContainer(ctx context.Context) (*Backend, error) {
	const port = "6379/tcp"

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{port},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort(port),
				wait.ForLog("Ready to accept connections"),
			).WithDeadline(startupTimeout),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start redis: %w", err)
	}

	endpoint, err := c.PortEndpoint(ctx, port, "redis")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("redis endpoint: %w", err)
	}
	return &Backend{Container: c, URL: endpoint + "/0"}, nil
}
