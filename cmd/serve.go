package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/venture-kit/plan-proxy/internal/preview"
	"github.com/venture-kit/plan-proxy/internal/ratelimit"
	"github.com/venture-kit/plan-proxy/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assist HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		st, err := buildStack(cfg)
		if err != nil {
			return err
		}

		srv := server.New(server.Options{
			Config:          cfg,
			Orchestrator:    st.orch,
			Counter:         ratelimit.NewMemory(),
			Previewer:       preview.New(),
			NewCaller:       st.newCaller,
			DefaultKey:      st.defaultKey,
			ConfiguredModel: st.configuredModel,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srv.Router(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			httpSrv.Shutdown(ctx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("provider", cfg.LLM.Provider),
			zap.Bool("keyConfigured", st.defaultKey != ""))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
