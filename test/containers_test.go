//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"

	"github.com/ogurasousui/company-registry/internal/platform/config"
)

const (
	dbName     = "company_registry"
	dbUser     = "registry"
	dbPassword = "registry"
)

// postgresContainer は PostgreSQL コンテナと接続設定です。
type postgresContainer struct {
	container *tcpostgres.PostgresContainer
	config    config.DatabaseConfig
}

func startPostgres(t *testing.T) *postgresContainer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase(dbName),
		tcpostgres.WithUsername(dbUser),
		tcpostgres.WithPassword(dbPassword),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		t.Fatalf("failed to get postgres host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(ctx)
		t.Fatalf("failed to get postgres port: %v", err)
	}

	return &postgresContainer{
		container: c,
		config: config.DatabaseConfig{
			Host:         host,
			Port:         port.Int(),
			User:         dbUser,
			Password:     dbPassword,
			Name:         dbName,
			SSLMode:      "disable",
			MaxOpenConns: 10,
		},
	}
}

func startRedis(t *testing.T) (*tcredis.RedisContainer, *redis.Client, string) {
	t.Helper()
	ctx := context.Background()

	c, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	url, err := c.ConnectionString(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		t.Fatalf("failed to get redis connection string: %v", err)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		_ = c.Terminate(ctx)
		t.Fatalf("failed to parse redis URL: %v", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		_ = c.Terminate(ctx)
		t.Fatalf("failed to ping redis: %v", err)
	}
	return c, client, url
}

func startRedpanda(t *testing.T) (*redpanda.Container, string) {
	t.Helper()
	ctx := context.Background()

	c, err := redpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v24.2.4", redpanda.WithAutoCreateTopics())
	if err != nil {
		t.Fatalf("failed to start redpanda container: %v", err)
	}
	broker, err := c.KafkaSeedBroker(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		t.Fatalf("failed to get seed broker: %v", err)
	}
	return c, broker
}
