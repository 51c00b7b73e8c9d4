// migrate-to-postgres copies a SQLite session journal into PostgreSQL.
//
// Usage:
//
//	go run ./cmd/migrate-to-postgres \
//	    -sqlite data/journal.db \
//	    -pg-host localhost \
//	    -pg-port 5432 \
//	    -pg-user cliffbrush \
//	    -pg-password cliffbrush \
//	    -pg-database cliffbrush
package main

import (
	"flag"
	"log"
	"os"

	"github.com/lawnchairsociety/cliffbrush/internal/journal"
)

func main() {
	defaults := journal.DefaultPostgresConfig()

	sqlitePath := flag.String("sqlite", "data/journal.db", "Path to SQLite journal")
	pgHost := flag.String("pg-host", defaults.Host, "PostgreSQL host")
	pgPort := flag.Int("pg-port", defaults.Port, "PostgreSQL port")
	pgUser := flag.String("pg-user", "cliffbrush", "PostgreSQL user")
	pgPassword := flag.String("pg-password", "", "PostgreSQL password")
	pgDatabase := flag.String("pg-database", defaults.Database, "PostgreSQL database name")
	pgSSLMode := flag.String("pg-sslmode", defaults.SSLMode, "PostgreSQL SSL mode")
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	flag.Parse()

	log.Println("SQLite to PostgreSQL Journal Migration")
	log.Println("======================================")

	if _, err := os.Stat(*sqlitePath); err != nil {
		log.Fatalf("SQLite journal not found: %v", err)
	}

	log.Printf("Opening SQLite journal: %s", *sqlitePath)
	src, err := journal.Open(*sqlitePath)
	if err != nil {
		log.Fatalf("Failed to open SQLite journal: %v", err)
	}
	defer src.Close()

	pg := defaults
	pg.Host = *pgHost
	pg.Port = *pgPort
	pg.User = *pgUser
	pg.Password = *pgPassword
	pg.Database = *pgDatabase
	pg.SSLMode = *pgSSLMode

	// Opening creates the PostgreSQL schema when it is missing
	log.Printf("Opening PostgreSQL journal: %s@%s:%d/%s", pg.User, pg.Host, pg.Port, pg.Database)
	dst, err := journal.OpenWithConfig(journal.Config{
		Driver:   string(journal.DialectPostgres),
		Postgres: pg,
	})
	if err != nil {
		log.Fatalf("Failed to open PostgreSQL journal: %v", err)
	}
	defer dst.Close()

	if *dryRun {
		log.Println("DRY RUN MODE - No changes will be made")
	}

	stats, err := src.CopyTo(dst, *dryRun)
	if err != nil {
		log.Fatalf("Migration failed after %d sessions: %v", stats.Sessions, err)
	}

	log.Println("======================================")
	log.Printf("Migration complete! Sessions: %d, placements: %d", stats.Sessions, stats.Placements)
	if *dryRun {
		log.Println("(DRY RUN - No actual changes were made)")
	}
}
