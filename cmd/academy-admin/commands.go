package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"

	redisadapter "github.com/novakinetix/academy/internal/adapters/redis"
	"github.com/novakinetix/academy/internal/bootstrap"
	"github.com/novakinetix/academy/internal/data"
	"github.com/novakinetix/academy/internal/devseed"
	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	apperrors "github.com/novakinetix/academy/internal/errors"
	"github.com/novakinetix/academy/internal/ports"
	"github.com/novakinetix/academy/internal/service"
)

var errActorNotAllowed = errors.New("actor may not change this user's role")

func runMigrations(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	timeout := fs.Duration("timeout", defaultCommandTimeout, "maximum time to wait for migrations")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := commandScope(cmdCtx.Ctx, *timeout)
	defer cancel()

	db, closeDB, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB()

	cmdCtx.Logger.Info("running database migrations")
	if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
		return err
	}
	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func runDBSeed(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("db-seed", flag.ContinueOnError)
	allowProduction := fs.Bool("allow-production", false, "seed even when APP_PRODUCTION is set")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmdCtx.Config.HTTP.Production && !*allowProduction {
		return errors.New("refusing to seed development accounts in production")
	}
	ctx, cancel := commandScope(cmdCtx.Ctx, 0)
	defer cancel()

	db, closeDB, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB()
	redisClient, closeRedis, err := connectRedis(cmdCtx)
	if err != nil {
		return err
	}
	defer closeRedis()

	if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
		return err
	}

	auth := newAccountService(cmdCtx, db, redisClient)
	if err := devseed.Run(ctx, devseed.Services{
		Accounts: auth,
		Profiles: data.NewProfileRepo(db),
	}, devseed.DefaultAccounts(), cmdCtx.Logger); err != nil {
		return err
	}
	return writef(cmdCtx.Out, "seeded development accounts (password %q)\n", devseed.DefaultPassword)
}

type createAccountOptions struct {
	Email     string
	Password  string
	FullName  string
	Role      domainauth.Role
	Confirmed bool
}

func parseCreateAccountFlags(args []string) (createAccountOptions, error) {
	fs := flag.NewFlagSet("create-account", flag.ContinueOnError)
	var (
		opts createAccountOptions
		role string
	)
	fs.StringVar(&opts.Email, "email", "", "account email (required)")
	fs.StringVar(&opts.Password, "password", "", "account password (required)")
	fs.StringVar(&opts.FullName, "name", "", "display name")
	fs.StringVar(&role, "role", string(domainauth.RoleStudent), "initial role")
	fs.BoolVar(&opts.Confirmed, "confirmed", true, "mark the email as confirmed")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Email == "" || opts.Password == "" {
		return opts, errors.New("-email and -password are required")
	}
	r, ok := domainauth.NormalizeRole(role)
	if !ok {
		return opts, fmt.Errorf("unknown role %q", role)
	}
	opts.Role = r
	return opts, nil
}

type accountCreator interface {
	CreatePasswordAccount(ctx context.Context, in service.CreateAccountInput) (domainauth.Credential, error)
}

// createAccount stores the credential, then provisions the matching profile.
func createAccount(ctx context.Context, accounts accountCreator, profiles ports.ProfileStore, opts createAccountOptions) (domainauth.Profile, error) {
	cred, err := accounts.CreatePasswordAccount(ctx, service.CreateAccountInput{
		Email:     opts.Email,
		Password:  opts.Password,
		Confirmed: opts.Confirmed,
	})
	if err != nil {
		return domainauth.Profile{}, err
	}
	profile, err := profiles.Upsert(ctx, domainauth.Profile{
		ID:            cred.UserID,
		Email:         cred.Email,
		FullName:      domainauth.DisplayName(opts.FullName, cred.Email),
		Role:          opts.Role,
		EmailVerified: cred.EmailConfirmed,
		FirstLogin:    true,
	})
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("provision profile for %s: %w", cred.Email, err)
	}
	return profile, nil
}

func runCreateAccount(cmdCtx *commandContext, args []string) error {
	opts, err := parseCreateAccountFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := commandScope(cmdCtx.Ctx, 0)
	defer cancel()

	db, closeDB, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB()
	redisClient, closeRedis, err := connectRedis(cmdCtx)
	if err != nil {
		return err
	}
	defer closeRedis()

	auth := newAccountService(cmdCtx, db, redisClient)
	profile, err := createAccount(ctx, auth, data.NewProfileRepo(db), opts)
	if err != nil {
		return err
	}
	return writef(cmdCtx.Out, "created %s (%s) as %s\n", profile.Email, profile.ID, profile.Role)
}

func newAccountService(cmdCtx *commandContext, db *sql.DB, redisClient redis.UniversalClient) *service.AuthService {
	return service.NewAuthService(service.AuthServiceOptions{
		Stores: service.AuthStores{
			Sessions: redisadapter.NewSessionStore(redisClient,
				redisadapter.WithPrefix(cmdCtx.Config.Redis.SessionPrefix)),
			Credentials: data.NewCredentialRepo(db),
		},
		Config: service.AuthServiceConfig{Logger: cmdCtx.Logger},
	})
}

type setRoleOptions struct {
	Actor  string
	Target string
	Role   domainauth.Role
}

func parseSetRoleFlags(args []string) (setRoleOptions, error) {
	fs := flag.NewFlagSet("set-role", flag.ContinueOnError)
	var (
		opts setRoleOptions
		role string
	)
	fs.StringVar(&opts.Actor, "actor", "", "email of the admin making the change (required)")
	fs.StringVar(&opts.Target, "user", "", "email or id of the user to change (required)")
	fs.StringVar(&role, "role", "", "new role (required)")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Actor == "" || opts.Target == "" || role == "" {
		return opts, errors.New("-actor, -user and -role are required")
	}
	r, ok := domainauth.NormalizeRole(role)
	if !ok {
		return opts, fmt.Errorf("unknown role %q", role)
	}
	opts.Role = r
	return opts, nil
}

type roleChanger interface {
	ports.ProfileStore
	ChangeRole(ctx context.Context, id string, role domainauth.Role, audit domainauth.Activity) error
}

// setRole changes target's role when actor is allowed to edit target.
// The change and its admin_action audit row commit together.
func setRole(ctx context.Context, profiles roleChanger, opts setRoleOptions) (domainauth.Profile, error) {
	actor, err := lookupProfile(ctx, profiles, opts.Actor)
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("actor: %w", err)
	}
	target, err := lookupProfile(ctx, profiles, opts.Target)
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("user: %w", err)
	}
	if actor.Role != domainauth.RoleAdmin || !domainauth.CanEditUser(actor, target) {
		return domainauth.Profile{}, errActorNotAllowed
	}

	audit := domainauth.Activity{
		UserID:      target.ID,
		Type:        domainauth.ActivityAdminAction,
		Description: fmt.Sprintf("role changed from %s to %s", target.Role, opts.Role),
		Metadata: map[string]any{
			"actor_id":  actor.ID,
			"from_role": string(target.Role),
			"to_role":   string(opts.Role),
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := profiles.ChangeRole(ctx, target.ID, opts.Role, audit); err != nil {
		return domainauth.Profile{}, err
	}
	target.Role = opts.Role
	return target, nil
}

func lookupProfile(ctx context.Context, profiles ports.ProfileStore, key string) (domainauth.Profile, error) {
	if strings.Contains(key, "@") {
		return profiles.GetByEmail(ctx, key)
	}
	return profiles.Get(ctx, key)
}

func runSetRole(cmdCtx *commandContext, args []string) error {
	opts, err := parseSetRoleFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := commandScope(cmdCtx.Ctx, 0)
	defer cancel()

	db, closeDB, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB()

	profile, err := setRole(ctx, data.NewProfileRepo(db), opts)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return fmt.Errorf("%w (has the user signed in yet?)", err)
		}
		return err
	}
	return writef(cmdCtx.Out, "%s is now %s\n", profile.Email, profile.Role)
}

func runListActivity(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("list-activity", flag.ContinueOnError)
	user := fs.String("user", "", "email or id of the user (required)")
	limit := fs.Int("limit", 20, "maximum rows to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("-user is required")
	}
	ctx, cancel := commandScope(cmdCtx.Ctx, 0)
	defer cancel()

	db, closeDB, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB()

	profile, err := lookupProfile(ctx, data.NewProfileRepo(db), *user)
	if err != nil {
		return err
	}
	activities, err := data.NewActivityRepo(db).ListByUser(ctx, profile.ID, *limit)
	if err != nil {
		return err
	}
	return printActivities(cmdCtx.Out, profile, activities)
}

func printActivities(w io.Writer, profile domainauth.Profile, activities []domainauth.Activity) error {
	if err := writef(w, "Activity for %s (%s, %s)\n\n", profile.Email, profile.ID, profile.Role); err != nil {
		return err
	}
	if len(activities) == 0 {
		return writef(w, "no activity recorded\n")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "WHEN\tTYPE\tDESCRIPTION\n"); err != nil {
		return err
	}
	for _, a := range activities {
		if err := writef(tw, "%s\t%s\t%s\n", a.CreatedAt.UTC().Format(time.RFC3339), a.Type, a.Description); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runRevokeSession(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("revoke-session", flag.ContinueOnError)
	sessionID := fs.String("session", "", "session id to revoke (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sessionID == "" {
		return errors.New("-session is required")
	}
	ctx, cancel := commandScope(cmdCtx.Ctx, 0)
	defer cancel()

	client, closeRedis, err := connectRedis(cmdCtx)
	if err != nil {
		return err
	}
	defer closeRedis()

	store := redisadapter.NewSessionStore(client, redisadapter.WithPrefix(cmdCtx.Config.Redis.SessionPrefix))
	if err := store.Delete(ctx, *sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return writef(cmdCtx.Out, "session %s revoked\n", *sessionID)
}
