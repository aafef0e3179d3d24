package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func companiesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "companies",
		Short: "Manage the companies users can register under",
	}
	cmd.AddCommand(companiesListCommand(e), companiesAddCommand(e))
	return cmd
}

func companiesListCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List companies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			companies, err := e.app.Accounts.ListCompanies(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range companies {
				fmt.Fprintln(cmd.OutOrStdout(), c.Name)
			}
			return nil
		},
	}
}

func companiesAddCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME",
		Short: "Add a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.app.Accounts.AddCompany(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", args[0])
			return nil
		},
	}
}
