package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"yt-allinone/internal/api"
	"yt-allinone/internal/config"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the download manager over a local HTTP API",
		Long: `Expose listing, downloads and pause/resume/cancel over HTTP for a local
front end. Progress is polled from /api/events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			listen := strings.TrimSpace(addr)
			if listen == "" {
				listen = a.cfg.Server.Addr
			}
			ctrl := api.NewController(a.manager(), a.enumerator(), api.TaskDefaults{
				OutputDirectory: a.cfg.Download.OutDir,
				Quality:         a.cfg.Quality(),
				Cookies:         a.cfg.Browser(),
			}, a.logger)
			return api.Serve(cmd.Context(), listen, ctrl, a.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, "+config.DefaultAddr+")")
	return cmd
}
