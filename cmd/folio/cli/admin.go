package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin users",
		Long:  "Create, list and recover the admin accounts that manage portfolio content.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminResetPasswordCmd())

	return cmd
}

// ---------- admin create ----------

type adminCreateOptions struct {
	email    string
	password string
	name     string
	yes      bool
}

func newAdminCreateCmd() *cobra.Command {
	var opts adminCreateOptions

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin user",
		Example: `  folio admin create                       # prompts for everything
  folio admin create --name Alice --email alice@example.com  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCreate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "Admin email address (prompted if omitted)")
	cmd.Flags().StringVar(&opts.password, "password", "", "Admin password (prompted if omitted)")
	cmd.Flags().StringVar(&opts.name, "name", "", "Admin display name (prompted if omitted)")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Create another admin without asking when one already exists")

	return cmd
}

func runAdminCreate(cmd *cobra.Command, opts adminCreateOptions) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	st, err := openStore(settings)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	auth := newAuthService(st, settings, slog.New(slog.DiscardHandler))
	out := cmd.OutOrStdout()
	p := newPrompter(cmd)

	existing, err := auth.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	if len(existing) > 0 {
		fmt.Fprintln(out, "Admin account(s) already exist:")
		for _, a := range existing {
			fmt.Fprintf(out, "  %s (created %s)\n", a.Email, a.CreatedAt.Format(time.RFC3339))
		}
		if !opts.yes {
			ok, err := p.confirm("Do you want to create another admin?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "Admin creation cancelled.")
				return nil
			}
		}
	}

	if opts.name == "" {
		if opts.name, err = p.line("Name: "); err != nil {
			return err
		}
	}
	if opts.email == "" {
		if opts.email, err = p.line("Email: "); err != nil {
			return err
		}
	}
	if opts.password == "" {
		if opts.password, err = p.newPassword("Password"); err != nil {
			return err
		}
	}

	admin, err := auth.CreateAdmin(ctx, service.RegisterInput{
		Name:     opts.name,
		Email:    opts.email,
		Password: opts.password,
	})
	if err != nil {
		return describeAdminError(err, opts.email)
	}

	fmt.Fprintln(out, "Admin created successfully:")
	printAdmin(cmd, admin)
	return nil
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all admin users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminList(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdminList(cmd *cobra.Command, jsonOutput bool) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	st, err := openStore(settings)
	if err != nil {
		return err
	}
	defer st.Close()

	admins, err := newAuthService(st, settings, slog.New(slog.DiscardHandler)).ListAdmins(context.Background())
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if admins == nil {
			admins = []*model.Admin{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(admins)
	}

	if len(admins) == 0 {
		fmt.Fprintln(out, "No admin users configured. Use 'folio admin create' to create one.")
		return nil
	}

	fmt.Fprintf(out, "%-30s %-24s %-20s %-20s\n", "EMAIL", "NAME", "LAST LOGIN", "CREATED")
	fmt.Fprintf(out, "%-30s %-24s %-20s %-20s\n", "-----", "----", "----------", "-------")
	for _, a := range admins {
		lastLogin := "never"
		if a.LastLoginAt != nil {
			lastLogin = a.LastLoginAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(out, "%-30s %-24s %-20s %-20s\n", a.Email, a.Name, lastLogin, a.CreatedAt.Format("2006-01-02 15:04"))
	}

	return nil
}

// ---------- admin reset-password ----------

func newAdminResetPasswordCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password for an admin",
		Long:  "Offline password recovery. Requires access to the store; no token is issued.",
		Example: `  folio admin reset-password --email alice@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminResetPassword(cmd, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "New password (prompted if omitted)")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runAdminResetPassword(cmd *cobra.Command, email, password string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	st, err := openStore(settings)
	if err != nil {
		return err
	}
	defer st.Close()

	if password == "" {
		if password, err = newPrompter(cmd).newPassword("New password"); err != nil {
			return err
		}
	}

	auth := newAuthService(st, settings, slog.New(slog.DiscardHandler))
	if err := auth.ResetPassword(context.Background(), email, password); err != nil {
		return describeAdminError(err, email)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", service.NormalizeEmail(email))
	return nil
}

// describeAdminError turns service errors into CLI messages.
func describeAdminError(err error, email string) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return errors.New(verr.Message)
	case errors.Is(err, service.ErrEmailInUse):
		return fmt.Errorf("an admin with email %s already exists", service.NormalizeEmail(email))
	case errors.Is(err, service.ErrIdentityNotFound):
		return fmt.Errorf("no admin with email %s", service.NormalizeEmail(email))
	}
	return err
}

func printAdmin(cmd *cobra.Command, a *model.Admin) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  ID:      %s\n", a.ID)
	fmt.Fprintf(out, "  Name:    %s\n", a.Name)
	fmt.Fprintf(out, "  Email:   %s\n", a.Email)
	fmt.Fprintf(out, "  Created: %s\n", a.CreatedAt.Format(time.RFC3339))
}
