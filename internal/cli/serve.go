package cli

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/depot/internal/auth"
	"github.com/five82/depot/internal/devserver"
	"github.com/five82/depot/internal/logging"
)

const demoTokenTTL = 12 * time.Hour

func newDemoServerCommand() *cobra.Command {
	var (
		addr      string
		secret    string
		delay     time.Duration
		envelope  bool
		tokenRole string
		logLevel  string
	)
	cmd := &cobra.Command{
		Use:   "demo-server",
		Short: "Serve a demo API with sample fleet data",
		Long: `Serve an in-memory copy of the API backed by sample data, for trying depot
without a real backend. Changes are lost on exit.

With --secret, requests need a bearer token signed with it and a token for
--token-role is printed at startup.`,
		GroupID: "system",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.New(cmd.ErrOrStderr(), logLevel, "text")
			srv, err := devserver.New(devserver.Options{
				Logger:   logger,
				Secret:   []byte(secret),
				Envelope: envelope,
				Delay:    delay,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return srv.ListenAndServe(cmd.Context(), addr, func(a net.Addr) {
				fmt.Fprintf(out, "Serving demo API on http://%s/api\n", a)
				if secret == "" {
					return
				}
				token, err := auth.Sign([]byte(secret), "demo", auth.ParseRole(tokenRole), demoTokenTTL)
				if err != nil {
					logger.Error("sign demo token", "err", err)
					return
				}
				fmt.Fprintf(out, "Token (%s): %s\n", auth.ParseRole(tokenRole), token)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&secret, "secret", "", "require bearer tokens signed with this secret")
	cmd.Flags().DurationVar(&delay, "delay", 0, "delay every response, e.g. 500ms")
	cmd.Flags().BoolVar(&envelope, "envelope", false, `wrap lists as {"data": [...]}`)
	cmd.Flags().StringVar(&tokenRole, "token-role", "admin", "role of the printed token")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	return cmd
}
