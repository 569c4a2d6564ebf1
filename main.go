package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	cl "github.com/aep/parsekit/client"
	"github.com/aep/parsekit/config"
	"github.com/aep/parsekit/mock"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "parsekit",
	Short:         "Query and edit objects of a Parse compatible backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})))
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("server", config.DefaultServerURL, "Server url, env PARSE_SERVER_URL")
	flags.String("app-id", "", "Application id, env PARSE_APPLICATION_ID")
	flags.String("api-key", "", "REST API key, env PARSE_API_KEY")
	flags.String("session", "", "Session token, env PARSE_SESSION_TOKEN")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log debug output")

	v := viper.GetViper()
	for key, flag := range map[string]string{
		"server_url":     "server",
		"application_id": "app-id",
		"api_key":        "api-key",
		"session_token":  "session",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
	if err := config.Bind(v); err != nil {
		panic(err)
	}

	cl.RegisterCommands(rootCmd, v)
	rootCmd.AddCommand(mock.CMD)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
