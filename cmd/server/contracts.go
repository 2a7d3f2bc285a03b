package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/web3-frozen/energy-monitor/internal/kv"
)

var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "Show or replace the monitored contract list",
}

var contractsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the monitored contracts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd.Context(), func(ctx context.Context, reg *kv.Registry) error {
			ids, err := reg.List(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		})
	},
}

var contractsSetCmd = &cobra.Command{
	Use:   "set <contract-id>...",
	Short: "Replace the monitored contracts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd.Context(), func(ctx context.Context, reg *kv.Registry) error {
			ids, err := reg.Set(ctx, args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "monitoring %d contracts\n", len(ids))
			return nil
		})
	},
}

var contractsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the stored list and monitor the configured defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd.Context(), func(ctx context.Context, reg *kv.Registry) error {
			ids, err := reg.Reset(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "monitoring %d default contracts\n", len(ids))
			return nil
		})
	},
}

func withRegistry(ctx context.Context, fn func(context.Context, *kv.Registry) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := kv.New(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, kv.NewRegistry(s, cfg.DefaultContracts))
}

func init() {
	contractsCmd.AddCommand(contractsListCmd, contractsSetCmd, contractsResetCmd)
}
