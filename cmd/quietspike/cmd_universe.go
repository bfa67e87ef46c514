package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"QuietSpike/internal/di"
)

var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Manage the symbol universe CSV",
}

var universeRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Download the current A-share code list and rewrite universe.path",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withServices(func(svc *di.Services) error {
			n, err := svc.Universe.Refresh(cmd.Context(), svc.Market)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d symbols\n", n)
			return nil
		})
	},
}

var universeListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the symbols of universe.path",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withServices(func(svc *di.Services) error {
			symbols, err := svc.Universe.Symbols(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range symbols {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.Code, s.Name)
			}
			return nil
		})
	},
}

func init() {
	universeCmd.AddCommand(universeRefreshCmd, universeListCmd)
	rootCmd.AddCommand(universeCmd)
}
