package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func progressCommand(e *env) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show a user's labeling progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID = strings.ToLower(strings.TrimSpace(userID))
			if userID == "" {
				return errors.New("--user is required")
			}
			p, err := e.app.Labels.Progress(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user: %s\nlabeled: %d\ncompleted batches: %d\nbatch position: %d\nremaining in batch: %d\n",
				userID, p.Labeled, p.CompletedBatches, p.BatchPosition, p.Remaining())
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (e-mail)")
	return cmd
}
