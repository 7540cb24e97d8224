package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/creditgw/backend/internal/domain/billing"
	"github.com/creditgw/backend/internal/domain/identity"
	"github.com/creditgw/backend/internal/domain/shared"
	"github.com/creditgw/backend/internal/infrastructure/config"
	"github.com/creditgw/backend/internal/infrastructure/logger"
	"github.com/creditgw/backend/internal/infrastructure/persistence"
)

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(logLevel, "console", "stdout")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	switch command {
	case "up":
		if err := db.Migrate(); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
		log.Info("Schema migrated successfully")

	case "seed":
		if err := seedAccount(db, log); err != nil {
			log.Fatal("Seed failed", zap.Error(err))
		}

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

// seedAccount creates a free-tier account with its signup grant and one
// API credential. The full key is printed exactly once; only its prefix
// and hash are stored.
func seedAccount(db *persistence.Database, log *zap.Logger) error {
	ctx := context.Background()

	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("failed to generate credential secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	account := billing.NewAccount()
	credential := &identity.ApiCredential{
		BaseEntity: shared.NewBaseEntity(),
		AccountID:  account.ID,
		Prefix:     secret[:identity.KeyPrefixLength],
		SecretHash: identity.HashSecret(secret),
		Active:     true,
		CachedTier: account.Tier,
	}

	accounts := persistence.NewAccountRepository(db.DB)
	credentials := persistence.NewCredentialRepository(db.DB)

	if err := accounts.Save(ctx, account); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	if err := credentials.Save(ctx, credential); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	log.Info("Account seeded",
		zap.String("account_id", account.ID.String()),
		zap.String("tier", string(account.Tier)),
		zap.String("balance", account.Balance.String()),
	)
	fmt.Printf("API key (shown once): sk-%s\n", secret)
	return nil
}

func printUsage() {
	fmt.Println(`Credit Gateway schema tool

Usage:
  migrate [flags] <command>

Commands:
  up      Create or update the schema for all persisted models
  seed    Create a free-tier account and print its API key

Flags:
  -log-level string   Log level: debug, info, warn, error (default: info)

Environment Variables:
  CREDITGW_DATABASE_HOST, CREDITGW_DATABASE_PORT, CREDITGW_DATABASE_USER,
  CREDITGW_DATABASE_PASSWORD, CREDITGW_DATABASE_DBNAME`)
}
