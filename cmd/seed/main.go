package main

import (
	"context"
	"flag"
	"log"

	"blog/core"
)

func main() {
	cfg := core.Load()
	path := flag.String("file", cfg.SeedFile, "YAML fixture with users and posts")
	flag.Parse()
	if *path == "" {
		log.Fatalf("no seed file: pass -file or set SEED_FILE")
	}

	ctx := context.Background()
	logCloser, err := core.SetupLogging(cfg, "seed.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	if err := core.Migrate(ctx, db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	directory := core.NewUserDirectory(core.NewPgUserRepository(db), core.NewPasswordHasher(cfg.BcryptCost))
	res, err := core.SeedFromFile(ctx, *path, directory, core.NewPgPostRepository(db))
	if err != nil {
		log.Fatalf("seed failed: %v", err)
	}
	log.Printf("seed done: users created=%d skipped=%d, posts created=%d", res.UsersCreated, res.UsersSkipped, res.PostsCreated)
}
