package mock

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aep/parsekit/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	addr       string
	sessionTTL time.Duration
)

const defaultCredential = "parsekit"

var CMD = &cobra.Command{
	Use:   "mock",
	Short: "start an in-memory backend for local development",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownTracing, err := telemetry.Init(ctx, "parsekit-mock", "")
		if err != nil {
			return err
		}
		defer shutdownTracing(context.Background())

		// credentials come from the global --app-id and --api-key flags
		// or their PARSE_ environment variables
		applicationID := viper.GetString("application_id")
		if applicationID == "" {
			applicationID = defaultCredential
		}
		apiKey := viper.GetString("api_key")
		if apiKey == "" {
			apiKey = defaultCredential
		}

		s, err := New(Options{
			ApplicationID: applicationID,
			APIKey:        apiKey,
			SessionTTL:    sessionTTL,
			Logger:        slog.Default(),
		})
		if err != nil {
			return err
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Shutdown(shutdownCtx); err != nil {
				slog.Error("shutdown failed", "err", err)
			}
		}()

		return s.Start(addr)
	},
}

func init() {
	CMD.Flags().StringVar(&addr, "addr", ":1337", "Address to listen on")
	CMD.Flags().DurationVar(&sessionTTL, "session-ttl", 24*time.Hour, "How long session tokens stay valid")
}
