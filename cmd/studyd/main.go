package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MarkoPoloResearchLab/studyledger/internal/httpapi"
	"github.com/MarkoPoloResearchLab/studyledger/internal/notify"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/study"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagDatabaseURL      = "database-url"
	flagCoinsPerMinute   = "coins-per-minute"
	flagExcludedChannels = "excluded-channels"
	flagRedisAddr        = "redis-addr"
	flagRedisPassword    = "redis-password"
	flagRedisDB          = "redis-db"
	flagRedisChannel     = "redis-channel"
	flagListenAddr       = "listen-addr"
	flagAllowedOrigins   = "allowed-origins"
	flagAdminJWTKey      = "admin-jwt-key"
	flagAdminJWTIssuer   = "admin-jwt-issuer"
	flagRequestTimeout   = "request-timeout"
	flagUser             = "user"
	flagLength           = "length"
	flagVideo            = "video"
	flagNotify           = "notify"
	envPrefix            = "STUDYD"

	defaultDatabaseURL  = "sqlite:///tmp/studyledger.db"
	defaultRedisChannel = "studyd.results"
)

type runtimeConfig struct {
	DatabaseURL      string
	CoinsPerMinute   int64
	ExcludedChannels []string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisChannel     string
	HTTP             httpapi.Config
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "studyd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "studyd",
		Short:         "Study session tracker and coin ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL URL or SQLite path")
	flags.Int64(flagCoinsPerMinute, study.DefaultCoinsPerMinute.Int64(), "coins credited per whole studied minute")
	flags.String(flagExcludedChannels, "", "comma-separated channel ids that do not count as studying")
	flags.String(flagRedisAddr, "", "Redis address for result publishing (optional)")
	flags.String(flagRedisPassword, "", "Redis password")
	flags.Int(flagRedisDB, 0, "Redis database number")
	flags.String(flagRedisChannel, defaultRedisChannel, "Redis pub/sub channel for settlement results")

	cmd.AddCommand(newServeCommand(cfg), newSimulateCommand(cfg), newBalanceCommand(cfg), newMigrateCommand(cfg))
	return cmd
}

func newServeCommand(cfg *runtimeConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the presence and query HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.HTTP.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			app, err := openApplication(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer app.Close()
			return httpapi.Run(ctx, cfg.HTTP, app.services, app.logger)
		},
	}
	cmd.Flags().String(flagListenAddr, "", "HTTP listen address")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	cmd.Flags().String(flagAdminJWTKey, "", "HS256 key for admin bearer tokens (required)")
	cmd.Flags().String(flagAdminJWTIssuer, "", "expected admin token issuer")
	cmd.Flags().Duration(flagRequestTimeout, 0, "timeout for read-only queries (e.g. 3s)")
	return cmd
}

func newSimulateCommand(cfg *runtimeConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Settle a synthetic session for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := ledger.NewUserID(trimmedFlag(cmd, flagUser))
			if err != nil {
				return err
			}
			length, _ := cmd.Flags().GetDuration(flagLength)
			video, _ := cmd.Flags().GetDuration(flagVideo)
			notifyResult, _ := cmd.Flags().GetBool(flagNotify)

			app, err := openApplication(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer app.Close()
			result, err := app.services.Engine.SimulateSession(cmd.Context(), userID, length, video, notifyResult)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(notify.NewResultPayload(result))
		},
	}
	cmd.Flags().String(flagUser, "", "user id (required)")
	cmd.Flags().Duration(flagLength, 0, "session length (e.g. 95m)")
	cmd.Flags().Duration(flagVideo, 0, "video time within the session")
	cmd.Flags().Bool(flagNotify, false, "deliver the result to the notification sinks")
	return cmd
}

func newBalanceCommand(cfg *runtimeConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Print a user's coin balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := ledger.NewUserID(trimmedFlag(cmd, flagUser))
			if err != nil {
				return err
			}
			app, err := openApplication(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer app.Close()
			balance, err := app.services.Ledger.Balance(cmd.Context(), userID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", userID.String(), balance.Int64())
			return err
		},
	}
	cmd.Flags().String(flagUser, "", "user id (required)")
	return cmd
}

func newMigrateCommand(cfg *runtimeConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApplication(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer app.Close()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", app.driver)
			return err
		},
	}
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, flagName := range []string{
		flagDatabaseURL, flagCoinsPerMinute, flagExcludedChannels,
		flagRedisAddr, flagRedisPassword, flagRedisDB, flagRedisChannel,
		flagListenAddr, flagAllowedOrigins, flagAdminJWTKey, flagAdminJWTIssuer, flagRequestTimeout,
	} {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(flagName, flag); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.CoinsPerMinute = v.GetInt64(flagCoinsPerMinute)
	if cfg.CoinsPerMinute < 0 {
		return fmt.Errorf("%s must not be negative", flagCoinsPerMinute)
	}
	cfg.ExcludedChannels = httpapi.ParseList(v.GetString(flagExcludedChannels))
	cfg.RedisAddr = strings.TrimSpace(v.GetString(flagRedisAddr))
	cfg.RedisPassword = v.GetString(flagRedisPassword)
	cfg.RedisDB = v.GetInt(flagRedisDB)
	cfg.RedisChannel = strings.TrimSpace(v.GetString(flagRedisChannel))
	if cfg.RedisChannel == "" {
		cfg.RedisChannel = defaultRedisChannel
	}

	cfg.HTTP = httpapi.Config{
		ListenAddr:      strings.TrimSpace(v.GetString(flagListenAddr)),
		AllowedOrigins:  httpapi.ParseAllowedOrigins(v.GetString(flagAllowedOrigins)),
		RequestTimeout:  v.GetDuration(flagRequestTimeout),
		AdminSigningKey: v.GetString(flagAdminJWTKey),
		AdminIssuer:     strings.TrimSpace(v.GetString(flagAdminJWTIssuer)),
	}
	return nil
}

func trimmedFlag(cmd *cobra.Command, name string) string {
	value, _ := cmd.Flags().GetString(name)
	return strings.TrimSpace(value)
}
