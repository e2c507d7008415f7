package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type seedAdminFlags struct {
	name     string
	email    string
	password string
	qrOut    string
}

func newSeedAdminCmd(g *globalFlags) *cobra.Command {
	var f seedAdminFlags
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create or reset the administrator account with 2FA enabled",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			a, err := loadApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			return seedAdmin(ctx, a, f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&f.name, "name", "Admin", "display name")
	cmd.Flags().StringVar(&f.email, "email", "admin@beautystore.com", "admin email")
	cmd.Flags().StringVar(&f.password, "password", "Admin123!", "admin password")
	cmd.Flags().StringVar(&f.qrOut, "qr-out", "", "write the 2FA QR code PNG to this file")
	return cmd
}

func seedAdmin(ctx context.Context, a *app, f seedAdminFlags, out io.Writer) error {
	user, setup, err := a.engine.ProvisionAdmin(ctx, f.name, f.email, f.password)
	if err != nil {
		return fmt.Errorf("provision admin: %w", err)
	}
	pair, err := a.engine.IssueSession(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("issue admin session: %w", err)
	}

	fmt.Fprintln(out, "admin ready")
	fmt.Fprintf(out, "  id:            %s\n", user.ID)
	fmt.Fprintf(out, "  email:         %s\n", user.Email)
	fmt.Fprintf(out, "  2fa secret:    %s\n", setup.Secret)
	fmt.Fprintf(out, "  otpauth url:   %s\n", setup.URL)
	fmt.Fprintf(out, "  access token:  %s\n", pair.AccessToken)
	fmt.Fprintf(out, "  refresh token: %s\n", pair.RefreshToken)
	if f.qrOut != "" {
		if err := os.WriteFile(f.qrOut, setup.PNG(), 0o600); err != nil {
			return fmt.Errorf("write qr code: %w", err)
		}
		fmt.Fprintf(out, "  qr code:       %s\n", f.qrOut)
	}
	return nil
}
