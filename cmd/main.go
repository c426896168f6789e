package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"catalog-cart-service/internal/config"
	"catalog-cart-service/internal/logging"
)

var (
	// Global flags
	envFile string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "catalog-cart",
	Short: "Catalog browsing with infinite scroll and a persistent cart",
	Long: `catalog-cart serves a paginated, searchable, sortable product catalog
together with a shopping cart that survives restarts.

Run "catalog-cart serve" to start the HTTP and gRPC servers, or use the
"cart" commands to inspect the persisted cart directly.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; the environment may be set another way.
		envErr := godotenv.Load(envFile)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.IsDevelopment(), cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = logger.With(zap.String("env", cfg.AppEnv))
		if envErr != nil {
			logger.Debug("no .env file loaded, relying on system environment", zap.String("path", envFile))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the environment is read")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cartCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
