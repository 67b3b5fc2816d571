package migration

import (
	"strings"
	"testing"
	"time"

	"github.com/arsyadal/fastblog/src/migration/migrations"
	"github.com/arsyadal/fastblog/src/migration/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreOrdered(t *testing.T) {
	versions := getSortedMigrationVersions()
	require.NotEmpty(t, versions)
	assert.Equal(t, "CreateEverything", migrations.All[versions[0]].Name())
	assert.Equal(t, versions[len(versions)-1], LatestVersion())

	for version, m := range migrations.All {
		assert.True(t, version.Equal(m.Version()), m.Name())
		assert.NotEmpty(t, m.Description(), m.Name())
	}
}

func TestMigrationIndexes(t *testing.T) {
	v := func(day int) types.MigrationVersion {
		return types.MigrationVersion(time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC))
	}
	all := []types.MigrationVersion{v(1), v(2), v(3)}

	current, target := migrationIndexes(all, types.MigrationVersion{}, v(3))
	assert.Equal(t, -1, current)
	assert.Equal(t, 2, target)

	current, target = migrationIndexes(all, v(3), v(1))
	assert.Equal(t, 2, current)
	assert.Equal(t, 0, target)

	_, target = migrationIndexes(all, v(1), v(9))
	assert.Equal(t, -1, target)
}

func TestParseMigrationVersion(t *testing.T) {
	version, err := types.ParseMigrationVersion("2026-03-02T17:42:10Z")
	require.Nil(t, err)
	assert.Equal(t, "2026-03-02T174210Z", version.FileSafe())

	_, err = types.ParseMigrationVersion("yesterday")
	assert.NotNil(t, err)
}

func TestRenderMigration(t *testing.T) {
	out := renderMigration("AddArticleSeries", `Group articles into "series"`, time.Date(2026, 10, 15, 8, 30, 5, 0, time.UTC))
	assert.NotContains(t, out, "%NAME%")
	assert.Contains(t, out, "type AddArticleSeries struct{}")
	assert.Contains(t, out, "time.Date(2026, 10, 15, 8, 30, 5, 0, time.UTC)")
	assert.Contains(t, out, `return "Group articles into \"series\""`)
	assert.True(t, strings.HasPrefix(out, "package migrations"))
}

func TestPick(t *testing.T) {
	got := pick(seedTags, 3)
	assert.Len(t, got, 3)
	assert.Len(t, pick(seedCategories, 50), len(seedCategories))
	assert.Empty(t, pick(seedTags, 0))
}
