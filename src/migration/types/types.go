package types

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

type Migration interface {
	Version() MigrationVersion
	Name() string
	Description() string
	Up(ctx context.Context, tx pgx.Tx) error
	Down(ctx context.Context, tx pgx.Tx) error
}

// Migrations are identified by the UTC time they were created.
type MigrationVersion time.Time

func ParseMigrationVersion(s string) (MigrationVersion, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return MigrationVersion{}, err
	}
	return MigrationVersion(t.UTC()), nil
}

func (v MigrationVersion) String() string {
	return time.Time(v).Format(time.RFC3339)
}

// The version as it appears in migration filenames, without colons.
func (v MigrationVersion) FileSafe() string {
	return strings.ReplaceAll(v.String(), ":", "")
}

func (v MigrationVersion) Before(other MigrationVersion) bool {
	return time.Time(v).Before(time.Time(other))
}

func (v MigrationVersion) Equal(other MigrationVersion) bool {
	return time.Time(v).Equal(time.Time(other))
}

func (v MigrationVersion) IsZero() bool {
	return time.Time(v).IsZero()
}
