package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodorder/internal/domain/auth"
	"github.com/xenking/foodorder/internal/domain/menu"
	"github.com/xenking/foodorder/internal/security"
	"github.com/xenking/foodorder/internal/storage/postgres"
)

type menuItemJSON struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
}

type options struct {
	databaseURL  string
	menuFile     string
	apiKey       string
	apiKeyPepper string
	jwtSecret    string
	jwtTTL       time.Duration
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.menuFile, "menu-file", "db/seed/menu.json", "path to menu JSON file")
	flag.StringVar(&opts.apiKey, "api-key", "", "payment provider API key to seed (or FOOD_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or FOOD_API_KEY_PEPPER env)")
	flag.StringVar(&opts.jwtSecret, "jwt-secret", "", "secret for the printed dev tokens (or FOOD_JWT_SECRET env)")
	flag.DurationVar(&opts.jwtTTL, "jwt-ttl", 30*24*time.Hour, "lifetime of the printed dev tokens")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("FOOD_SEED_API_KEY")
	}
	if opts.apiKey == "" {
		slog.Error("API key is required: set --api-key or FOOD_SEED_API_KEY")
		os.Exit(1)
	}
	if opts.apiKeyPepper == "" {
		opts.apiKeyPepper = os.Getenv("FOOD_API_KEY_PEPPER")
	}
	if opts.jwtSecret == "" {
		opts.jwtSecret = os.Getenv("FOOD_JWT_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedMenu(ctx, postgres.NewMenuRepository(pool), opts.menuFile); err != nil {
		return errors.Wrap(err, "seed menu")
	}

	principals, err := seedUsers(ctx, postgres.NewUserRepository(pool))
	if err != nil {
		return errors.Wrap(err, "seed users")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), opts.apiKey, opts.apiKeyPepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	if opts.jwtSecret == "" {
		slog.Warn("no JWT secret given, skipping dev tokens")
		return nil
	}
	return printTokens(security.NewJWT([]byte(opts.jwtSecret), opts.jwtTTL), principals)
}

func seedMenu(ctx context.Context, repo *postgres.MenuRepository, menuFile string) error {
	slog.Info("reading menu file", slog.String("path", menuFile))

	data, err := os.ReadFile(menuFile)
	if err != nil {
		return errors.Wrap(err, "read menu file")
	}

	var items []menuItemJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse menu JSON")
	}

	slog.Info("upserting menu items", slog.Int("count", len(items)))

	for _, it := range items {
		m := menu.MenuItem{
			Name:        it.Name,
			Description: it.Description,
			Price:       it.Price,
			Image:       it.Image,
			Category:    it.Category,
			Available:   true,
		}
		if err := repo.UpsertByName(ctx, &m); err != nil {
			return errors.Wrapf(err, "upsert menu item %s", it.Name)
		}

		slog.Info("upserted menu item", slog.Int64("id", m.ID), slog.String("name", m.Name))
	}

	return nil
}

func seedUsers(ctx context.Context, repo *postgres.UserRepository) ([]auth.Principal, error) {
	slog.Info("seeding demo users")

	users := []postgres.User{
		{Name: "Demo Customer", Email: "customer@example.com", Phone: "+1 555 0100", Role: auth.RoleCustomer},
		{Name: "Demo Admin", Email: "admin@example.com", Phone: "+1 555 0199", Role: auth.RoleAdmin},
	}

	principals := make([]auth.Principal, 0, len(users))
	for _, u := range users {
		id, err := repo.Upsert(ctx, u)
		if err != nil {
			return nil, errors.Wrapf(err, "upsert user %s", u.Email)
		}
		principals = append(principals, auth.Principal{UserID: id, Role: u.Role, Name: u.Name, Email: u.Email})

		slog.Info("upserted user", slog.Int64("id", id), slog.String("email", u.Email), slog.String("role", string(u.Role)))
	}

	return principals, nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding payment provider API key")

	if err := repo.Upsert(ctx, auth.APIKeyInfo{
		ID:      "payment-provider",
		KeyHash: auth.HashKey([]byte(pepper), apiKey),
		Name:    "Payment provider webhook",
		Scopes:  []string{auth.ScopePaymentsWebhook},
	}); err != nil {
		return errors.Wrap(err, "upsert payment provider API key")
	}

	slog.Info("upserted API key", slog.String("id", "payment-provider"), slog.String("scope", auth.ScopePaymentsWebhook))

	return nil
}

// printTokens writes one bearer token per demo user to stdout.
func printTokens(issuer *security.JWT, principals []auth.Principal) error {
	for _, p := range principals {
		token, err := issuer.Issue(p)
		if err != nil {
			return errors.Wrapf(err, "issue token for %s", p.Email)
		}
		fmt.Printf("%s (%s):\n  Authorization: Bearer %s\n", p.Email, p.Role, token)
	}
	return nil
}
