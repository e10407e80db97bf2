package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/querylens-io/querylens/internal/server"
)

type serveOptions struct {
	Host  string
	Port  int
	Watch bool
}

func newServeCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the QueryLens HTTP server",
		Long: `Start a local web server exposing the QueryLens API: query execution
in final and steps mode, dataset uploads, the relationship graph, constraint
simulation, and query history.`,
		Example: `  # Serve the datasets in ./data on the default port
  querylens serve --data-dir data

  # Custom port, reloading datasets on file changes
  querylens serve --data-dir data --port 3000 --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "", "Host to bind (default: 127.0.0.1)")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: 8080)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Reload datasets on file changes")
	cmd.Flags().String("static-dir", "", "Directory of static UI files to serve at /")

	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cc, cleanup, err := newCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cc.Cfg
	host := cfg.Server.Host
	if opts.Host != "" {
		host = opts.Host
	}
	port := cfg.Server.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	watch := cfg.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.Watch
	}

	srvCfg := server.Config{
		Engine:    cc.Engine,
		Graph:     cc.Graph,
		Loader:    cc.Loader,
		Host:      host,
		Port:      port,
		StaticDir: cfg.Server.StaticDir,
		Watch:     watch,
		DataDir:   cfg.DataDir,
		Logger:    cc.Logger,
	}
	if cc.History != nil {
		srvCfg.History = cc.History
	}

	srv, err := server.New(srvCfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s:%d\n", host, port)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx)
}
