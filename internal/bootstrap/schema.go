package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/vaihtovirtahepo/faustjs/internal/config"
	"github.com/vaihtovirtahepo/faustjs/internal/domain"
	"github.com/vaihtovirtahepo/faustjs/internal/repository"
)

const createSchemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id         BIGINT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'ACTIVE',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS auth_codes (
	id         BIGINT PRIMARY KEY,
	user_id    BIGINT NOT NULL REFERENCES users (id),
	code       TEXT NOT NULL UNIQUE,
	expires_at TIMESTAMPTZ NOT NULL,
	revoked    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS auth_codes_expires_at_idx ON auth_codes (expires_at);
`

// EnsureSchema creates the backing tables on startup and optionally seeds a
// user for dev/e2e runs.
func EnsureSchema(lc fx.Lifecycle, cfg config.Config, pool *pgxpool.Pool, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if _, err := pool.Exec(ctx, createSchemaSQL); err != nil {
				return fmt.Errorf("bootstrap schema: %w", err)
			}
			return ensureSeedUser(ctx, cfg, users, node, logger)
		},
	})
}

func ensureSeedUser(ctx context.Context, cfg config.Config, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.SeedUserEmail))
	if email == "" {
		return nil
	}

	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("bootstrap lookup user: %w", err)
	}

	created, err := users.Create(ctx, domain.User{
		ID:     node.Generate().Int64(),
		Email:  email,
		Name:   "Seed User",
		Status: "ACTIVE",
	})
	if err != nil {
		return fmt.Errorf("bootstrap create user: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap seed user created",
			zap.String("email", created.Email),
			zap.Int64("user_id", created.ID),
		)
	}
	return nil
}
