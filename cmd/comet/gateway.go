package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/knowfox/comet/internal/gateway"
)

func newGatewayCmd(flags *rootFlags) *cobra.Command {
	var addr, origins string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Serve Gemini pages as JSON over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			var allowed []string
			if strings.TrimSpace(origins) != "" {
				allowed = strings.Split(origins, ",")
			}
			s := gateway.NewServer(gateway.Config{
				Client:      a.client(),
				Credentials: a.provider,
				History:     a.history,
				Logger:      a.logger,
				Origins:     allowed,
				Timeout:     timeout,
			})
			httpSrv := &http.Server{
				Addr:    addr,
				Handler: gateway.BuildRouter(s),
			}

			// graceful shutdown
			idle := make(chan struct{})
			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				<-sigCh
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(ctx)
				close(idle)
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s ...\n", addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			<-idle
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&origins, "origins", os.Getenv("ORIGIN_ALLOWED"), "comma separated CORS origins (default any)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "page request timeout")
	return cmd
}
