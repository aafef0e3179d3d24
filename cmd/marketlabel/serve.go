package main

import (
	"github.com/spf13/cobra"

	"github.com/vbonduro/marketlabel/internal/web"
	"github.com/vbonduro/marketlabel/internal/web/templates"
)

func serveCommand(e *env) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the labeling web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := e.app
			if addr == "" {
				addr = a.Config.ListenAddr
			}

			server := web.NewServer(web.Deps{
				Labels:         a.Labels,
				Accounts:       a.Accounts,
				Photos:         a.Photos,
				Sessions:       a.Sessions,
				Catalog:        a.Catalog,
				Metrics:        a.Metrics.Handler(),
				ManagerEnabled: a.Config.ManagerEnabled,
			}, templates.FS, a.Logger)

			if err := server.Run(cmd.Context(), addr); err != nil {
				a.Logger.Error("server error", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides LISTEN_ADDR)")
	return cmd
}
