package main

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	gemini "github.com/knowfox/comet"
	"github.com/knowfox/comet/identity"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr, certFile, keyFile, root, hostname string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a directory over Gemini",
		Long: "Serve a directory over Gemini. /whoami answers with the client\n" +
			"certificate subject, or asks for one.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := flags.logger()
			slog.SetDefault(logger)

			var cert tls.Certificate
			var err error
			if certFile != "" || keyFile != "" {
				cert, err = tls.LoadX509KeyPair(certFile, keyFile)
			} else {
				logger.Info("using a generated certificate", "hostname", hostname)
				cert, err = identity.SelfSignedPair(hostname)
			}
			if err != nil {
				return fmt.Errorf("server certificate: %w", err)
			}

			files := gemini.FileServer(root)
			handler := gemini.TrapPanic(func(w gemini.ResponseWriter, req *gemini.Request) {
				logger.Info("request", "path", req.URL.Path, "user", strings.Join(userName(req), " "))
				if req.URL.Path == "/whoami" {
					whoami(w, req)
					return
				}
				files.ServeGemini(w, req)
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", root, addr)
			return gemini.ListenAndServe(addr, cert, handler)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:1965", "listen address")
	cmd.Flags().StringVar(&certFile, "cert", "", "certificate file (PEM), generated when empty")
	cmd.Flags().StringVar(&keyFile, "key", "", "private key file (PEM)")
	cmd.Flags().StringVar(&root, "root", ".", "directory to serve")
	cmd.Flags().StringVar(&hostname, "hostname", "localhost", "common name of the generated certificate")
	return cmd
}

func whoami(w gemini.ResponseWriter, req *gemini.Request) {
	cert := req.PeerCertificate()
	if cert == nil {
		w.WriteStatusMsg(gemini.StatusCertRequired, "Authentication Required")
		return
	}
	if err := w.WriteStatusMsg(gemini.StatusSuccess, "text/gemini"); err != nil {
		return
	}
	w.WriteBody([]byte("# " + cert.Subject.CommonName + "\n"))
}

func userName(r *gemini.Request) []string {
	cert := r.PeerCertificate()
	if cert == nil {
		return []string{""}
	}
	return []string{cert.Subject.CommonName, cert.SerialNumber.String()}
}
