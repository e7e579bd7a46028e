package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"adhoc-admin/backend/internal/config"
	"adhoc-admin/backend/internal/db"
	"adhoc-admin/backend/internal/logger"
	policyengine "adhoc-admin/backend/internal/policy/engine"
	"adhoc-admin/backend/internal/security"
	"adhoc-admin/backend/internal/session"
	sessionrepo "adhoc-admin/backend/internal/session/repository"
	"adhoc-admin/backend/internal/user/domain"
	userrepo "adhoc-admin/backend/internal/user/repository"
	userservice "adhoc-admin/backend/internal/user/service"
)

// accounts is the operator surface of the user service.
type accounts interface {
	Upsert(ctx context.Context, email, password string, role domain.Role) (*domain.AdminUser, error)
	SetRole(ctx context.Context, email string, role domain.Role) (*domain.AdminUser, error)
	SetActive(ctx context.Context, email string, active bool) (*domain.AdminUser, error)
}

type lister interface {
	List(ctx context.Context) ([]*domain.AdminUser, error)
}

type app struct {
	accounts accounts
	users    lister
	// readPassword prompts on the terminal; nil when stdin is not a terminal.
	readPassword func(prompt string) (string, error)
}

type opener func(ctx context.Context) (*app, func(), error)

// openApp connects to the database named by DATABASE_URL and builds the user service.
func openApp(ctx context.Context) (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	zl, err := logger.New(logger.Config{Level: "warn", Dev: true})
	if err != nil {
		return nil, nil, err
	}
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	policy, err := policyengine.NewOPAEvaluatorFromFile(ctx, cfg.AdminPolicyPath)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	users := userrepo.NewPostgresRepository(conn)
	hasher := security.NewHasher(uint32(cfg.Argon2MemoryKiB), uint32(cfg.Argon2Iterations), uint8(cfg.Argon2Parallelism))
	sessions := session.NewManager(sessionrepo.NewPostgresRepository(conn), users, cfg.SessionSecret, cfg.SessionTTL(), cfg.IsProduction(), zl)

	a := &app{
		accounts: userservice.NewUserService(users, hasher, sessions, policy, zl),
		users:    users,
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		a.readPassword = promptPassword
	}
	return a, func() { _ = zl.Sync(); _ = conn.Close() }, nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

func newRootCmd(open opener) *cobra.Command {
	var a *app
	var closeFn func()

	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Manage admin accounts",
		Long:          "Create, list and change admin accounts directly in the database named by DATABASE_URL.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, closeFn, err = open(cmd.Context())
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if closeFn != nil {
				closeFn()
			}
		},
	}
	get := func() *app { return a }

	cmd.AddCommand(newCreateCmd(get))
	cmd.AddCommand(newListCmd(get))
	cmd.AddCommand(newSetRoleCmd(get))
	cmd.AddCommand(newActiveCmd(get, "activate", true))
	cmd.AddCommand(newActiveCmd(get, "deactivate", false))
	return cmd
}

func newCreateCmd(get func() *app) *cobra.Command {
	var email, password, role string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create or update an active admin account",
		Example: `  admin create --email owner@example.com --password 'correct horse battery'
  admin create --email owner@example.com --role SUPER_ADMIN  # prompts for password`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if password == "" {
				if a.readPassword == nil {
					return errors.New("--password is required when stdin is not a terminal")
				}
				p, err := a.readPassword("Password: ")
				if err != nil {
					return err
				}
				confirm, err := a.readPassword("Confirm password: ")
				if err != nil {
					return err
				}
				if p != confirm {
					return errors.New("passwords do not match")
				}
				password = p
			}
			r := domain.RoleAdmin
			if role != "" {
				parsed, err := domain.ParseRole(role)
				if err != nil {
					return err
				}
				r = parsed
			}
			u, err := a.accounts.Upsert(cmd.Context(), email, password, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Admin user ensured: %s (%s)\n", u.Email, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.Flags().StringVar(&role, "role", "", "ADMIN (default) or SUPER_ADMIN for new accounts")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newListCmd(get func() *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List admin accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := get().users.List(cmd.Context())
			if err != nil {
				return err
			}
			return printUsers(cmd.OutOrStdout(), users, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type userRow struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"isActive"`
}

func printUsers(w io.Writer, users []*domain.AdminUser, jsonOutput bool) error {
	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, userRow{ID: u.ID, Email: u.Email, Role: string(u.Role), IsActive: u.IsActive})
	}
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "No admin users. Use 'admin create' to create one.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tROLE\tACTIVE\tID")
	for _, r := range rows {
		active := "yes"
		if !r.IsActive {
			active = "no"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Email, r.Role, active, r.ID)
	}
	return tw.Flush()
}

func newSetRoleCmd(get func() *app) *cobra.Command {
	var email, role string

	cmd := &cobra.Command{
		Use:   "set-role",
		Short: "Change the role of an admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := domain.ParseRole(role)
			if err != nil {
				return err
			}
			u, err := get().accounts.SetRole(cmd.Context(), email, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", u.Email, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&role, "role", "", "ADMIN or SUPER_ADMIN (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newActiveCmd(get func() *app, use string, active bool) *cobra.Command {
	var email string
	short := "Allow an admin account to sign in"
	if !active {
		short = "Block an admin account and end its sessions"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := get().accounts.SetActive(cmd.Context(), email, active)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %sd\n", u.Email, use)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
