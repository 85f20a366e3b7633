package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"iclock-gateway/internal/config"
	"iclock-gateway/pkg/database"

	_ "github.com/lib/pq"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <migration_file.sql> [more files...]", os.Args[0])
	}

	cfg := config.Load()
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer database.Close(db)

	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	for _, migrationFile := range os.Args[1:] {
		sqlContent, err := os.ReadFile(migrationFile)
		if err != nil {
			log.Fatalf("Failed to read migration file %s: %v", migrationFile, err)
		}

		statements := strings.Split(string(sqlContent), ";")
		for i, stmt := range statements {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" || strings.HasPrefix(stmt, "--") {
				continue
			}
			fmt.Printf("%s: executing statement %d/%d...\n", migrationFile, i+1, len(statements))
			if _, err := db.Exec(stmt); err != nil {
				log.Fatalf("Failed to execute statement %d of %s: %v", i+1, migrationFile, err)
			}
		}
	}

	fmt.Println("Done.")
}
