package migration

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/arsyadal/fastblog/src/config"
	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/migration/migrations"
	"github.com/arsyadal/fastblog/src/migration/types"
	"github.com/arsyadal/fastblog/src/utils"
	"github.com/arsyadal/fastblog/src/website"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
)

const versionTable = "fastblog_migration"

var listMigrations bool

func init() {
	migrateCommand := &cobra.Command{
		Use:   "migrate [target migration id]",
		Short: "Run database migrations",
		Run: func(cmd *cobra.Command, args []string) {
			if listMigrations {
				ListMigrations()
				return
			}

			var targetVersion types.MigrationVersion
			if len(args) > 0 {
				var err error
				targetVersion, err = types.ParseMigrationVersion(args[0])
				if err != nil {
					fmt.Printf("ERROR: bad version string: %v\n", err)
					os.Exit(1)
				}
			}
			Migrate(targetVersion)
		},
	}
	migrateCommand.Flags().BoolVar(&listMigrations, "list", false, "List available migrations")

	makeMigrationCommand := &cobra.Command{
		Use:   "makemigration <name> <description>...",
		Short: "Create a new database migration file",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 2 {
				fmt.Printf("You must provide a name and a description.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			name := args[0]
			description := strings.Join(args[1:], " ")

			MakeMigration(name, description)
		},
	}

	seedFromFileCommand := &cobra.Command{
		Use:   "seedfile <filename> [after migration id]",
		Short: "Migrates up to <after migration id> (default latest) and restores the data in a pg_dump file",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 {
				fmt.Printf("You must provide a seed file.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			var afterMigration types.MigrationVersion
			if len(args) > 1 {
				var err error
				afterMigration, err = types.ParseMigrationVersion(args[1])
				if err != nil {
					fmt.Printf("ERROR: bad version string: %v\n", err)
					os.Exit(1)
				}
			}

			SeedFromFile(args[0], afterMigration)
		},
	}

	seedCommand := &cobra.Command{
		Use:   "seed",
		Short: "Migrates to the latest version and fills the db with sample users and articles",
		Run: func(cmd *cobra.Command, args []string) {
			numUsers, _ := cmd.Flags().GetInt("users")
			numArticles, _ := cmd.Flags().GetInt("articles")
			SampleSeed(numUsers, numArticles)
		},
	}
	seedCommand.Flags().Int("users", 10, "Number of users to create, not counting the admin")
	seedCommand.Flags().Int("articles", 40, "Number of articles to create")

	website.WebsiteCommand.AddCommand(migrateCommand)
	website.WebsiteCommand.AddCommand(makeMigrationCommand)
	website.WebsiteCommand.AddCommand(seedFromFileCommand)
	website.WebsiteCommand.AddCommand(seedCommand)
}

func getSortedMigrationVersions() []types.MigrationVersion {
	var allVersions []types.MigrationVersion
	for migrationTime := range migrations.All {
		allVersions = append(allVersions, migrationTime)
	}
	sort.Slice(allVersions, func(i, j int) bool {
		return allVersions[i].Before(allVersions[j])
	})

	return allVersions
}

func LatestVersion() types.MigrationVersion {
	allVersions := getSortedMigrationVersions()
	return allVersions[len(allVersions)-1]
}

func getCurrentVersion(ctx context.Context, conn *pgx.Conn) (types.MigrationVersion, error) {
	var currentVersion time.Time
	row := conn.QueryRow(ctx, "SELECT version FROM "+versionTable)
	err := row.Scan(&currentVersion)
	if err != nil {
		return types.MigrationVersion{}, err
	}
	currentVersion = currentVersion.UTC()

	return types.MigrationVersion(currentVersion), nil
}

func tryGetCurrentVersion(ctx context.Context) types.MigrationVersion {
	currentVersion, _ := currentVersionOrError(ctx)
	return currentVersion
}

func currentVersionOrError(ctx context.Context) (version types.MigrationVersion, err error) {
	defer utils.RecoverPanicAsError(&err)

	conn := db.NewConn()
	defer conn.Close(ctx)

	return getCurrentVersion(ctx, conn)
}

func ListMigrations() {
	ctx := context.Background()

	currentVersion := tryGetCurrentVersion(ctx)
	for _, version := range getSortedMigrationVersions() {
		migration := migrations.All[version]
		indicator := "  "
		if version.Equal(currentVersion) {
			indicator = "✔ "
		}
		fmt.Printf("%s%v (%s: %s)\n", indicator, version, migration.Name(), migration.Description())
	}
}

/*
Rolls the database forward or back to targetVersion, one transaction per
migration. A zero targetVersion means the latest migration.
*/
func Migrate(targetVersion types.MigrationVersion) {
	ctx := context.Background()

	conn := db.NewConn()
	defer conn.Close(ctx)

	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+versionTable+` (
			version		TIMESTAMP WITH TIME ZONE
		)
	`)
	if err != nil {
		panic(fmt.Errorf("failed to create migration table: %w", err))
	}

	// ensure there is a row
	row := conn.QueryRow(ctx, "SELECT COUNT(*) FROM "+versionTable)
	var numRows int
	err = row.Scan(&numRows)
	if err != nil {
		panic(err)
	}
	if numRows < 1 {
		_, err := conn.Exec(ctx, "INSERT INTO "+versionTable+" (version) VALUES ($1)", time.Time{})
		if err != nil {
			panic(fmt.Errorf("failed to insert initial migration row: %w", err))
		}
	}

	currentVersion, err := getCurrentVersion(ctx, conn)
	if err != nil {
		panic(fmt.Errorf("failed to get current version: %w", err))
	}
	if currentVersion.IsZero() {
		fmt.Println("This is the first time you have run database migrations.")
	} else {
		fmt.Printf("Current version: %s\n", currentVersion.String())
	}

	allVersions := getSortedMigrationVersions()
	if targetVersion.IsZero() {
		targetVersion = allVersions[len(allVersions)-1]
	}

	currentIndex, targetIndex := migrationIndexes(allVersions, currentVersion, targetVersion)
	if targetIndex < 0 {
		fmt.Printf("ERROR: Could not find migration with version %v\n", targetVersion)
		return
	}

	if currentIndex < targetIndex {
		for i := currentIndex + 1; i <= targetIndex; i++ {
			version := allVersions[i]
			migration := migrations.All[version]
			fmt.Printf("Applying migration %v (%v)\n", version, migration.Name())
			if !applyMigration(ctx, conn, version, migration.Up, version) {
				return
			}
		}
	} else if currentIndex > targetIndex {
		for i := currentIndex; i > targetIndex; i-- {
			version := allVersions[i]
			previousVersion := types.MigrationVersion{}
			if i > 0 {
				previousVersion = allVersions[i-1]
			}

			fmt.Printf("Rolling back migration %v\n", version)
			migration := migrations.All[version]
			if !applyMigration(ctx, conn, version, migration.Down, previousVersion) {
				return
			}
		}
	} else {
		fmt.Println("Already migrated; nothing to do.")
	}
}

// Returns -1 for a version that isn't known. A zero current version is
// always -1, meaning nothing has been applied.
func migrationIndexes(allVersions []types.MigrationVersion, current, target types.MigrationVersion) (int, int) {
	currentIndex := -1
	targetIndex := -1
	for i, version := range allVersions {
		if current.Equal(version) {
			currentIndex = i
		}
		if target.Equal(version) {
			targetIndex = i
		}
	}
	return currentIndex, targetIndex
}

func applyMigration(
	ctx context.Context,
	conn *pgx.Conn,
	version types.MigrationVersion,
	step func(ctx context.Context, tx pgx.Tx) error,
	newVersion types.MigrationVersion,
) bool {
	tx, err := conn.Begin(ctx)
	if err != nil {
		panic(fmt.Errorf("failed to start transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	err = step(ctx, tx)
	if err != nil {
		fmt.Printf("MIGRATION FAILED for migration %v.\n", version)
		fmt.Printf("Error: %v\n", err)
		return false
	}

	_, err = tx.Exec(ctx, "UPDATE "+versionTable+" SET version = $1", time.Time(newVersion))
	if err != nil {
		panic(fmt.Errorf("failed to update version in migrations table: %w", err))
	}

	err = tx.Commit(ctx)
	if err != nil {
		panic(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return true
}

//go:embed migrationTemplate.txt
var migrationTemplate string

func renderMigration(name, description string, now time.Time) string {
	result := migrationTemplate
	result = strings.ReplaceAll(result, "%NAME%", name)
	result = strings.ReplaceAll(result, "%DESCRIPTION%", fmt.Sprintf("%#v", description))

	nowConstructor := fmt.Sprintf("time.Date(%d, %d, %d, %d, %d, %d, 0, time.UTC)", now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second())
	result = strings.ReplaceAll(result, "%DATE%", nowConstructor)
	return result
}

func MakeMigration(name, description string) {
	now := time.Now().UTC().Truncate(time.Second)
	result := renderMigration(name, description, now)

	filename := fmt.Sprintf("%v_%v.go", types.MigrationVersion(now).FileSafe(), name)
	path := filepath.Join("src", "migration", "migrations", filename)

	err := os.WriteFile(path, []byte(result), 0644)
	if err != nil {
		panic(fmt.Errorf("failed to write migration file: %w", err))
	}

	fmt.Println("Successfully created migration file:")
	fmt.Println(path)
}

// Restores a pg_dump of production data on top of a migrated schema. The
// dump must have been taken at afterMigration, or at the latest migration if
// afterMigration is zero.
func SeedFromFile(seedFile string, afterMigration types.MigrationVersion) {
	file, err := os.Open(seedFile)
	if err != nil {
		panic(fmt.Errorf("couldn't open seed file %s: %w", seedFile, err))
	}
	file.Close()

	if !afterMigration.IsZero() && migrations.All[afterMigration] == nil {
		panic(fmt.Errorf("could not find migration: %s", afterMigration))
	}

	fmt.Println("Running migrations...")
	Migrate(afterMigration)

	fmt.Println("Executing seed...")
	cmd := exec.Command("pg_restore",
		"--single-transaction",
		"--data-only",
		"--dbname", config.Config.Postgres.DSN(),
		seedFile,
	)
	fmt.Println("Running pg_restore on", seedFile)
	if output, err := cmd.CombinedOutput(); err != nil {
		fmt.Print(string(output))
		panic(fmt.Errorf("failed to execute seed: %w", err))
	}

	fmt.Println("Done! You may want to migrate forward from here.")
	ListMigrations()
}
