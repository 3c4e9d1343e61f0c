package testinternals

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"github.com/2beens/bloglist/internal/db"
)

const testDBName = "bloglist_test"

// Postgres is a throwaway postgres container with the service schema applied.
type Postgres struct {
	DSN  string
	Port string
	// DB is a database/sql handle for raw fixture setup and assertions.
	DB   *sql.DB
	Pool *pgxpool.Pool

	dockerPool *dockertest.Pool
	resource   *dockertest.Resource
}

func StartPostgres(ctx context.Context) (*Postgres, error) {
	// uses a sensible default on windows (tcp/http) and linux/osx (socket)
	dockerPool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("create dockertest pool: %w", err)
	}
	if err := dockerPool.Client.Ping(); err != nil {
		return nil, fmt.Errorf("ping docker: %w", err)
	}
	dockerPool.MaxWait = 2 * time.Minute

	resource, err := dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_DB=" + testDBName,
			"POSTGRES_HOST_AUTH_METHOD=trust",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	if err != nil {
		return nil, fmt.Errorf("run postgres: %w", err)
	}
	_ = resource.Expire(300) // hard kill after 5 minutes

	pg := &Postgres{
		Port:       resource.GetPort("5432/tcp"),
		dockerPool: dockerPool,
		resource:   resource,
	}
	pg.DSN = fmt.Sprintf(
		"postgres://postgres@%s/%s?sslmode=disable",
		net.JoinHostPort("localhost", pg.Port), testDBName,
	)

	if err := dockerPool.Retry(func() error {
		sqlDB, err := sql.Open("postgres", pg.DSN)
		if err != nil {
			return err
		}
		if err := sqlDB.Ping(); err != nil {
			_ = sqlDB.Close()
			return err
		}
		pg.DB = sqlDB
		return nil
	}); err != nil {
		pg.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	pg.Pool, err = db.NewDBPool(ctx, db.NewDBPoolParams{ConnString: pg.DSN})
	if err != nil {
		pg.Close()
		return nil, err
	}

	if err := db.EnsureSchema(ctx, pg.Pool); err != nil {
		pg.Close()
		return nil, err
	}

	return pg, nil
}

// Reset removes all rows and restarts the id sequences.
func (pg *Postgres) Reset(ctx context.Context) error {
	_, err := pg.Pool.Exec(ctx, `TRUNCATE blogs, users RESTART IDENTITY CASCADE`)
	return err
}

func (pg *Postgres) Close() {
	if pg.Pool != nil {
		pg.Pool.Close()
	}
	if pg.DB != nil {
		if err := pg.DB.Close(); err != nil {
			log.Printf("close postgres sql db: %s", err)
		}
	}
	if pg.resource != nil {
		if err := pg.dockerPool.Purge(pg.resource); err != nil {
			log.Printf("postgres teardown: %s", err)
		}
	}
}
