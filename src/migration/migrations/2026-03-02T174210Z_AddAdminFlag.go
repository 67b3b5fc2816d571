package migrations

import (
	"context"
	"time"

	"github.com/arsyadal/fastblog/src/migration/types"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/jackc/pgx/v5"
)

func init() {
	registerMigration(AddAdminFlag{})
}

type AddAdminFlag struct{}

func (m AddAdminFlag) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2026, 3, 2, 17, 42, 10, 0, time.UTC))
}

func (m AddAdminFlag) Name() string {
	return "AddAdminFlag"
}

func (m AddAdminFlag) Description() string {
	return "Let some users feature any article and see perf data"
}

func (m AddAdminFlag) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		ALTER TABLE users
			ADD is_admin BOOLEAN NOT NULL DEFAULT FALSE;
		`,
	)
	if err != nil {
		return oops.New(err, "failed to add is_admin")
	}
	return nil
}

func (m AddAdminFlag) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `ALTER TABLE users DROP is_admin`)
	if err != nil {
		return oops.New(err, "failed to drop is_admin")
	}
	return nil
}
