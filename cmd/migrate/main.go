package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"go-concord/pkg/app"
	pkgMigrations "go-concord/pkg/migrations"

	// Import all migration files to register them
	localMigrations "go-concord/migrations"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status")
		steps   = flag.Int("steps", 1, "Number of migrations to rollback (for down command)")
		dryRun  = flag.Bool("dry-run", false, "Show what would be done without executing")
		timeout = flag.Duration("timeout", 5*time.Minute, "Overall deadline for the command")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Only MongoDB is needed to apply migrations
	appCtx, err := app.InitializeApp("concord-migrate", app.Options{RequireMongoDB: true})
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer appCtx.Shutdown(ctx)

	runner := pkgMigrations.NewRunner(appCtx.MongoDB.Database)
	localMigrations.RegisterAll(runner)

	switch *command {
	case "up":
		if *dryRun {
			fmt.Println("DRY RUN: pending migrations are listed below, nothing is applied")
			if err := printStatus(ctx, runner); err != nil {
				log.Fatalf("Failed to show status: %v", err)
			}
			return
		}
		ran, err := runner.Run(ctx)
		if err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		if len(ran) == 0 {
			fmt.Println("Database is up to date")
			return
		}
		for _, version := range ran {
			fmt.Printf("Applied %s\n", version)
		}

	case "down":
		if *steps < 1 {
			log.Fatal("steps must be at least 1")
		}
		if *dryRun {
			fmt.Printf("DRY RUN: would roll back the last %d migration(s)\n", *steps)
			if err := printStatus(ctx, runner); err != nil {
				log.Fatalf("Failed to show status: %v", err)
			}
			return
		}
		if err := runner.Rollback(ctx, *steps); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		fmt.Printf("Rolled back %d migration(s)\n", *steps)

	case "status":
		if err := printStatus(ctx, runner); err != nil {
			log.Fatalf("Failed to get migration status: %v", err)
		}

	default:
		log.Fatalf("Unknown command: %s", *command)
	}
}

func printStatus(ctx context.Context, runner *pkgMigrations.Runner) error {
	entries, err := runner.Status(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tAPPLIED\tDESCRIPTION")
	for _, e := range entries {
		applied := "pending"
		if e.AppliedAt != nil {
			applied = e.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Version, applied, e.Description)
	}
	return w.Flush()
}
