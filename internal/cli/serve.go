package cli

import (
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dshills/vibecheck/internal/server"
)

var (
	flagHost string
	flagPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve reviews over HTTP (POST /api/v1/diff)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			fail(err)
			return nil
		}
		host, port := cfg.Server.Host, cfg.Server.Port
		if flagHost != "" {
			host = flagHost
		}
		if flagPort > 0 {
			port = flagPort
		}

		root := repoRoot()
		a, err := newApp(cfg, root, newLogger())
		if err != nil {
			fail(err)
			return nil
		}
		defer a.close()

		srv := server.New(a.engine, server.Options{Root: root, Log: a.log})
		if err := srv.ListenAndServe(cmd.Context(), net.JoinHostPort(host, strconv.Itoa(port))); err != nil {
			fail(err)
		}
		return nil
	},
}

func init() {
	addModelFlags(serveCmd)
	serveCmd.Flags().StringVar(&flagHost, "host", "", "Listen host (default from config)")
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "Listen port (default from config)")
	serveCmd.Flags().StringVar(&flagRepoPath, "path", ".", "Repository used for tool lookups")
}
