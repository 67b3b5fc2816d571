package migrations

import (
	"github.com/arsyadal/fastblog/src/migration/types"
)

// Every migration registers itself here from its init function.
var All = make(map[types.MigrationVersion]types.Migration)

func registerMigration(m types.Migration) {
	All[m.Version()] = m
}
