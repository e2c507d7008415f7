package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

type accountStatusFlags struct {
	email  string
	active bool
}

func newAccountStatusCmd(g *globalFlags) *cobra.Command {
	var f accountStatusFlags
	cmd := &cobra.Command{
		Use:   "account-status",
		Short: "Suspend or restore a customer account",
		Long: "Suspend or restore a customer account. Suspending signs the " +
			"account out everywhere and blocks further logins.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			a, err := loadApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			return setAccountStatus(ctx, a, f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().BoolVar(&f.active, "active", false, "restore the account instead of suspending it")
	return cmd
}

func setAccountStatus(ctx context.Context, a *app, f accountStatusFlags, out io.Writer) error {
	if f.email == "" {
		return errors.New("--email is required")
	}
	user, err := a.engine.SetAccountActive(ctx, f.email, f.active)
	if err != nil {
		return fmt.Errorf("set account status: %w", err)
	}
	state := "suspended"
	if f.active {
		state = "active"
	}
	fmt.Fprintf(out, "%s is now %s\n", user.Email, state)
	return nil
}
