package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"whisperd/internal/apihandlers"
)

var (
	serveAddr string
	servePort string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the transcription node HTTP server",
	Long: `Starts the HTTP server and the background preparation cycle. The node
serves immediately and reports "starting" until the GPUs are verified and all
enabled models are downloaded; submissions are accepted once it is ready.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		if err := appInstance.Startup(); err != nil {
			return fmt.Errorf("startup failed: %w", err)
		}

		router := gin.Default()
		h := apihandlers.NewAPIHandler(appInstance)

		router.GET("/health", h.HealthHandler)
		router.POST("/transcribe", h.TranscribeHandler)
		router.GET("/status", h.StatusHandler)
		router.GET("/queue", h.QueueHandler)
		router.GET("/dashboard/state", h.DashboardStateHandler)
		router.GET("/", h.DashboardHandler)

		addr := serveAddr
		if addr == "" {
			addr = appInstance.Config.Server.Addr
		}
		port := servePort
		if port == "" {
			port = appInstance.Config.Server.Port
		}
		listenAddr := fmt.Sprintf("%s:%s", addr, port)

		srv := &http.Server{Addr: listenAddr, Handler: router}

		errCh := make(chan error, 1)
		go func() {
			appInstance.Log.WithField("addr", listenAddr).Info("starting HTTP server")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			appInstance.Shutdown()
			return fmt.Errorf("failed to run API server: %w", err)
		case sig := <-shutdown:
			appInstance.Log.WithField("signal", sig.String()).Info("shutdown signal received")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			appInstance.Log.WithError(err).Warn("HTTP server shutdown error")
		}

		// Workers drain after the listener closes; in-flight jobs finish.
		appInstance.Shutdown()
		appInstance.Log.Info("shutdown complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides config)")
}
