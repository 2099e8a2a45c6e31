package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/farmlink-backend/internal/users"
	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/migrate"
)

// envSeedPassword holds the create-user password. Unset generates one.
const envSeedPassword = "FARMLINK_SEED_USER_PASSWORD"

type flags struct {
	cmd     string
	dir     string
	name    string
	version string
	account users.ProvisionInput
}

func parseFlags() flags {
	var f flags
	var phone, address, city, state, zip string
	flag.StringVar(&f.cmd, "cmd", "up", "up|down|status|version|create|validate|create-user")
	flag.StringVar(&f.dir, "dir", "", "read migrations from this directory instead of the embedded set")
	flag.StringVar(&f.name, "name", "", "migration name (create)")
	flag.StringVar(&f.version, "version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.StringVar(&f.account.Email, "email", "", "account email (create-user)")
	flag.StringVar(&f.account.FullName, "full-name", "", "account display name (create-user)")
	flag.StringVar(&f.account.Role, "role", "admin", "buyer|farmer|admin (create-user)")
	flag.StringVar(&phone, "phone", "", "buyer phone (create-user)")
	flag.StringVar(&address, "address", "", "buyer delivery address (create-user)")
	flag.StringVar(&city, "city", "", "buyer city (create-user)")
	flag.StringVar(&state, "state", "", "buyer state (create-user)")
	flag.StringVar(&zip, "zip", "", "buyer zip code (create-user)")
	flag.Parse()

	f.account.Password = os.Getenv(envSeedPassword)
	f.account.Profile = users.ProfileDTO{
		Phone:           &phone,
		DeliveryAddress: &address,
		City:            &city,
		State:           &state,
		ZipCode:         &zip,
	}
	return f
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()
	f := parseFlags()

	// File-only commands run without config or a database.
	switch f.cmd {
	case "create":
		if f.name == "" {
			fail("missing -name for create")
		}
		dir := f.dir
		if dir == "" {
			dir = migrate.SourceDir
		}
		path, err := migrate.Create(dir, f.name, time.Now())
		if err != nil {
			fail("create migration: %v", err)
		}
		fmt.Println("created", path)
		return
	case "validate":
		if err := migrate.Validate(migrate.Source(f.dir)); err != nil {
			fail("validation failed: %v", err)
		}
		fmt.Println("migrations valid")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "load config", err)
		os.Exit(1)
	}
	logg = logger.FromConfig("migrate", cfg.App)
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": f.cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "connect database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if f.cmd == "create-user" {
		createUser(ctx, dbClient, cfg.Password, f.account)
		return
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "sql handle", err)
		os.Exit(1)
	}
	runner, err := migrate.NewRunner(sqlDB, migrate.Source(f.dir), logg)
	if err != nil {
		logg.Error(ctx, "build migration runner", err)
		os.Exit(1)
	}

	switch f.cmd {
	case "up":
		applied, err := runner.Up(ctx)
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("applied %d migration(s)\n", applied)
	case "down":
		if err := runner.Down(ctx); err != nil {
			fail("%v", err)
		}
	case "status":
		printStatus(ctx, runner)
	case "version":
		target, err := strconv.ParseInt(f.version, 10, 64)
		if err != nil {
			fail("invalid -version %q: expected YYYYMMDDHHMMSS", f.version)
		}
		if err := runner.To(ctx, target); err != nil {
			fail("%v", err)
		}
	default:
		fail("unknown -cmd %q", f.cmd)
	}
}

func createUser(ctx context.Context, client *db.Client, pw config.PasswordConfig, in users.ProvisionInput) {
	res, err := users.Provision(ctx, users.NewRepository(client.DB()), pw, in)
	if err != nil {
		fail("create user: %v", err)
	}
	fmt.Printf("created %s %s (%s)\n", res.User.Role, res.User.Email, res.User.ID)
	if res.GeneratedPassword != "" {
		fmt.Println("temporary password:", res.GeneratedPassword)
	}
}

func printStatus(ctx context.Context, runner *migrate.Runner) {
	rows, err := runner.Status(ctx)
	if err != nil {
		fail("%v", err)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tAPPLIED AT\tFILE")
	for _, row := range rows {
		applied := "pending"
		if row.Applied {
			applied = row.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", row.Version, applied, row.Path)
	}
	_ = tw.Flush()
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
