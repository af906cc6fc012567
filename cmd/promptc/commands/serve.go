package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/promptc/am"
	"github.com/teranos/promptc/errors"
	"github.com/teranos/promptc/logger"
	"github.com/teranos/promptc/server"
	"github.com/teranos/promptc/version"
)

type serveOptions struct {
	port  int
	watch bool
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		Short:   "Serve the parser over HTTP and WebSocket",
		Long: `Start the promptc server.

Endpoints:
  POST /api/parse   {"prompt": "...", "tree": false}
  POST /api/legacy  {"prompt": "..."}
  GET  /health
  GET  /ws          live parse, one JSON response per JSON message

With --watch the highest-precedence config file is watched and the parser is
rebuilt when it changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Port to listen on (default from server.port)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Reload the parser when the config file changes")
	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	port := cfg.GetServerPort()
	if cmd.Flags().Changed("port") {
		port = opts.port
	}

	srv, err := server.New(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	watched := ""
	if opts.watch {
		watched = watchTarget()
		if err := srv.WatchConfig(watched); err != nil {
			return err
		}
	}

	ln, err := srv.Listen(port)
	if err != nil {
		return err
	}
	printStartupBanner(cmd, cfg, ln.Addr().String(), watched)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return errors.Wrap(err, "server stopped unexpectedly")
	case <-sigChan:
		pterm.Info.Println("Shutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop()
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return errors.Wrap(err, "shutdown error")
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("Force shutdown - exiting immediately")
			logger.Cleanup()
			os.Exit(1)
			return nil
		}
	}
}

// watchTarget returns the config file --watch follows: the highest-precedence
// file that was loaded, or the user config so a file created later is seen.
func watchTarget() string {
	if files := am.LoadedFiles(); len(files) > 0 {
		return files[len(files)-1]
	}
	return am.UserConfigPath()
}

// printStartupBanner prints the listen address and active parser settings
func printStartupBanner(cmd *cobra.Command, cfg *am.Config, addr, watched string) {
	info := version.Get()
	rows := [][]string{
		{"Version", fmt.Sprintf("%s (commit %s)", info.Version, info.Short())},
		{"Listening", "http://" + addr},
		{"Attention", fmt.Sprintf("+%g / -%g", cfg.Parser.AttentionPlusBase, cfg.Parser.AttentionMinusBase)},
		{"Legacy blend", fmt.Sprintf("%v", cfg.Parser.LegacyBlend)},
		{"Verbosity", logger.LevelName(verbosity(cmd, cfg))},
	}
	if cfg.Server.RequestsPerSecond > 0 {
		rows = append(rows, []string{"Rate limit", fmt.Sprintf("%g req/s, burst %d", cfg.Server.RequestsPerSecond, cfg.Server.Burst)})
	}
	if watched != "" {
		rows = append(rows, []string{"Watching", watched})
	}

	table, err := pterm.DefaultTable.WithData(rows).Srender()
	if err != nil {
		logger.Warnw("Failed to render banner", logger.FieldError, err)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), pterm.DefaultBox.WithTitle("promptc").Sprint(table))
	fmt.Fprint(cmd.OutOrStdout(), pterm.Info.Sprintln("Press Ctrl+C to stop"))
}
