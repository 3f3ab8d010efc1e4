// Command accountctl inspects accounts and resets free usage.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"example/comment-search-api/app"
	"example/comment-search-api/app/config"
	"example/comment-search-api/store"
)

func main() {
	if err := newRootCmd(openStore).Execute(); err != nil {
		os.Exit(1)
	}
}

type storeOpener func(ctx context.Context) (store.Accounts, error)

func openStore(ctx context.Context) (store.Accounts, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return app.OpenAccounts(ctx, cfg.Store)
}

func newRootCmd(open storeOpener) *cobra.Command {
	root := &cobra.Command{
		Use:          "accountctl",
		Short:        "Inspect and maintain comment-search accounts",
		SilenceUsage: true,
	}
	root.AddCommand(newShowCmd(open), newResetUsageCmd(open))
	return root
}

func newShowCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "show <account-id>",
		Short: "Print an account record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), open, func(ctx context.Context, s store.Accounts) error {
				acct, err := s.Get(ctx, args[0])
				if err != nil {
					return fmt.Errorf("get %s: %w", args[0], err)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(acct)
			})
		},
	}
}

func newResetUsageCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-usage <account-id>",
		Short: "Set an account's usage count back to zero",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), open, func(ctx context.Context, s store.Accounts) error {
				if err := s.ResetUsage(ctx, args[0]); err != nil {
					return fmt.Errorf("reset %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "usage reset for %s\n", args[0])
				return nil
			})
		},
	}
}

func withStore(parent context.Context, open storeOpener, fn func(context.Context, store.Accounts) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	s, err := open(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()
	return fn(ctx, s)
}
