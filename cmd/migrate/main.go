package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"vendorhub.org/internal/auth"
	"vendorhub.org/internal/ids"
	"vendorhub.org/internal/migrate"
	"vendorhub.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	var (
		dsn            = flag.String("dsn", os.Getenv("VENDORHUB_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "migrations", "Path to SQL migrations")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or VENDORHUB_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|status|create-admin <email> <password>]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	mgr := migrate.NewManager(store.DB(), *migrationsPath)

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	case "create-admin":
		err = createAdmin(ctx, store, flag.Arg(1), flag.Arg(2))
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

// createAdmin bootstraps an administrator account so the first approval can
// happen without touching the database by hand.
func createAdmin(ctx context.Context, store *pg.Store, email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("usage: migrate create-admin <email> <password>")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	ident := &auth.Identity{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateIdentity(ctx, ident); err != nil {
		return err
	}
	fmt.Printf("created admin %s (%s)\n", ident.Email, ident.ID)
	return nil
}
