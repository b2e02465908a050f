package migration

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"git.handmade.network/hmn/postmerge/src/config"
	"git.handmade.network/hmn/postmerge/src/db"
	"git.handmade.network/hmn/postmerge/src/migration/migrations"
	"git.handmade.network/hmn/postmerge/src/migration/types"
	"git.handmade.network/hmn/postmerge/src/website"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/spf13/cobra"
)

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

			targetVersion := time.Time{}
			if len(args) > 0 {
				var err error
				targetVersion, err = time.Parse(time.RFC3339, args[0])
				if err != nil {
					fmt.Printf("ERROR: bad version string: %v", err)
					os.Exit(1)
				}
			}
			Migrate(types.MigrationVersion(targetVersion))
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

	seedCommand := &cobra.Command{
		Use:   "seed",
		Short: "Resets the db, migrates to the latest version, and fills it with sample forum data",
		Run: func(cmd *cobra.Command, args []string) {
			ResetDB()
			SampleSeed()
		},
	}

	seedFromFileCommand := &cobra.Command{
		Use:   "seedfile <filename>",
		Short: "Resets the db, migrates to the latest version, and restores the data from a pg_dump file",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 {
				fmt.Printf("You must provide a seed file.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			ResetDB()
			Migrate(LatestVersion())
			SeedFromFile(args[0])
		},
	}

	website.WebsiteCommand.AddCommand(migrateCommand)
	website.WebsiteCommand.AddCommand(makeMigrationCommand)
	website.WebsiteCommand.AddCommand(seedCommand)
	website.WebsiteCommand.AddCommand(seedFromFileCommand)
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
	row := conn.QueryRow(ctx, "SELECT version FROM hmn_migration")
	err := row.Scan(&currentVersion)
	if err != nil {
		return types.MigrationVersion{}, err
	}
	currentVersion = currentVersion.UTC()

	return types.MigrationVersion(currentVersion), nil
}

func tryGetCurrentVersion(ctx context.Context) types.MigrationVersion {
	defer func() {
		recover()
	}()

	conn := db.NewConn()
	defer conn.Close(ctx)

	currentVersion, _ := getCurrentVersion(ctx, conn)

	return currentVersion
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
Returns the versions to apply, in order, to get from current to target. When
rolling back, the second result is true and each version is one to undo.
*/
func migrationPlan(allVersions []types.MigrationVersion, current, target types.MigrationVersion) (plan []types.MigrationVersion, rollback bool, err error) {
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

	if targetIndex < 0 {
		return nil, false, fmt.Errorf("could not find migration with version %v", target)
	}
	if currentIndex < 0 && !current.IsZero() {
		return nil, false, fmt.Errorf("the database is at unknown version %v", current)
	}

	if currentIndex < targetIndex {
		return allVersions[currentIndex+1 : targetIndex+1], false, nil
	}
	for i := currentIndex; i > targetIndex; i-- {
		plan = append(plan, allVersions[i])
	}
	return plan, true, nil
}

func Migrate(targetVersion types.MigrationVersion) {
	ctx := context.Background()

	conn := db.NewConn()
	defer conn.Close(ctx)

	// create migration table
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS hmn_migration (
			version		TIMESTAMP WITH TIME ZONE
		)
	`)
	if err != nil {
		panic(fmt.Errorf("failed to create migration table: %w", err))
	}

	// ensure there is a row
	row := conn.QueryRow(ctx, "SELECT COUNT(*) FROM hmn_migration")
	var numRows int
	err = row.Scan(&numRows)
	if err != nil {
		panic(err)
	}
	if numRows < 1 {
		_, err := conn.Exec(ctx, "INSERT INTO hmn_migration (version) VALUES ($1)", time.Time{})
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
		targetVersion = LatestVersion()
	}

	plan, rollback, err := migrationPlan(allVersions, currentVersion, targetVersion)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		return
	}
	if len(plan) == 0 {
		fmt.Println("Already migrated; nothing to do.")
		return
	}

	for _, version := range plan {
		migration := migrations.All[version]

		newVersion := version
		if rollback {
			fmt.Printf("Rolling back migration %v\n", version)
			newVersion = previousVersion(allVersions, version)
		} else {
			fmt.Printf("Applying migration %v (%v)\n", version, migration.Name())
		}

		err := runMigrationStep(ctx, conn, newVersion, func(tx pgx.Tx) error {
			if rollback {
				return migration.Down(ctx, tx)
			}
			return migration.Up(ctx, tx)
		})
		if err != nil {
			fmt.Printf("MIGRATION FAILED for migration %v.\n", version)
			fmt.Printf("Error: %v\n", err)
			return
		}
	}
}

func previousVersion(allVersions []types.MigrationVersion, version types.MigrationVersion) types.MigrationVersion {
	for i, v := range allVersions {
		if v.Equal(version) && i > 0 {
			return allVersions[i-1]
		}
	}
	return types.MigrationVersion{}
}

func runMigrationStep(ctx context.Context, conn *pgx.Conn, newVersion types.MigrationVersion, step func(tx pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		panic(fmt.Errorf("failed to start transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	if err := step(tx); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, "UPDATE hmn_migration SET version = $1", time.Time(newVersion))
	if err != nil {
		panic(fmt.Errorf("failed to update version in migrations table: %w", err))
	}

	err = tx.Commit(ctx)
	if err != nil {
		panic(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

//go:embed migrationTemplate.txt
var migrationTemplate string

func MakeMigration(name, description string) {
	result := migrationTemplate
	result = strings.ReplaceAll(result, "%NAME%", name)
	result = strings.ReplaceAll(result, "%DESCRIPTION%", fmt.Sprintf("%#v", description))

	now := time.Now().UTC()
	nowConstructor := fmt.Sprintf("time.Date(%d, %d, %d, %d, %d, %d, 0, time.UTC)", now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second())
	result = strings.ReplaceAll(result, "%DATE%", nowConstructor)

	safeVersion := strings.ReplaceAll(types.MigrationVersion(now).String(), ":", "")
	filename := fmt.Sprintf("%v_%v.go", safeVersion, name)
	path := filepath.Join("src", "migration", "migrations", filename)

	err := os.WriteFile(path, []byte(result), 0644)
	if err != nil {
		panic(fmt.Errorf("failed to write migration file: %w", err))
	}

	fmt.Println("Successfully created migration file:")
	fmt.Println(path)
}

// Drops and recreates the configured database.
// NOTE: The db role specified in the config must have the CREATEDB attribute! `ALTER ROLE hmn WITH CREATEDB;`
func ResetDB() {
	fmt.Println("Resetting database...")

	ctx := context.Background()

	// We have to connect to something other than our own db in order to drop it.
	// template1 always exists, since it's the db that gets cloned for new dbs.
	template1 := config.Config.Postgres
	template1.DbName = "template1"

	// The low-level pgconn API runs the statements outside of a transaction,
	// which DROP DATABASE requires.
	lowLevelConn, err := pgconn.Connect(ctx, template1.DSN())
	if err != nil {
		panic(fmt.Errorf("failed to connect to db: %w", err))
	}
	defer lowLevelConn.Close(ctx)

	dbName := pgx.Identifier{config.Config.Postgres.DbName}.Sanitize()

	result := lowLevelConn.ExecParams(ctx, fmt.Sprintf("DROP DATABASE %s", dbName), nil, nil, nil, nil)
	_, err = result.Close()
	var pgErr *pgconn.PgError
	if err != nil && !(errors.As(err, &pgErr) && pgErr.SQLState() == "3D000") { // 3D000 means "Database does not exist"
		panic(fmt.Errorf("failed to drop db: %w", err))
	}

	result = lowLevelConn.ExecParams(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName), nil, nil, nil, nil)
	_, err = result.Close()
	if err != nil {
		panic(fmt.Errorf("failed to create db: %w", err))
	}
}
