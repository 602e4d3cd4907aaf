package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"whisperd/internal/app"
	"whisperd/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "whisperd",
	Short: "GPU transcription queue node",
	Long: `whisperd accepts asynchronous transcription requests over HTTP, queues
them, runs each on an exclusively-owned GPU slot and reports the outcome to
the caller's callback endpoint.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
			return nil
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		appInstance, err := app.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		ctx := context.WithValue(cmd.Context(), appKey, appInstance)
		cmd.SetContext(ctx)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Custom context key type to avoid collisions.
type contextKey string

const appKey contextKey = "app"

// GetAppFromContext retrieves the app instance stored by PersistentPreRunE.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check catalog connectivity and runtime prerequisites",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}

		fmt.Println("Checking model catalog connectivity...")
		if err := appInstance.Catalog.Ping(ctx); err != nil {
			return fmt.Errorf("catalog ping failed: %w", err)
		}
		fmt.Println("Catalog connection successful.")

		fmt.Println("Checking ffmpeg...")
		if err := appInstance.Preprocessor.Check(); err != nil {
			return err
		}
		fmt.Println("ffmpeg found.")

		fmt.Println("Checking transcriber backend...")
		if err := appInstance.Transcriber.Check(ctx); err != nil {
			return err
		}
		fmt.Println("Transcriber backend available.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
