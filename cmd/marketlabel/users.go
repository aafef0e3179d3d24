package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vbonduro/marketlabel/internal/store"
)

func usersCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect registered users",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users with their label counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := e.app.Accounts.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			counts, err := e.app.Labels.LabeledByUser(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EMAIL\tNAME\tCOMPANY\tLABELED")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s %s\t%s\t%d\n", u.Email, u.FirstName, u.LastName, u.Company, counts[store.NormalizeUserID(u.Email)])
			}
			return tw.Flush()
		},
	})
	return cmd
}
