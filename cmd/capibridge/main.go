package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"capibridge/internal/config"
	"capibridge/internal/constants"
	"capibridge/internal/logger"
	"capibridge/internal/signature"
	"capibridge/pkg/logging"
)

var (
	configFile string
)

// @title        capibridge
// @version      1.0
// @description  Forwards storefront order webhooks to the Meta Conversions API as Purchase events.
// @BasePath     /
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   constants.ServiceName,
		Short: "Storefront purchase webhook to conversions API bridge",
		Long:  "capibridge authenticates order-placed webhooks and forwards each order as a Purchase conversion event",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (optional, CONFIG_FILE env also honoured)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(signCmd())

	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			if configFile == "" {
				configFile = os.Getenv("CONFIG_FILE")
			}

			cfg, err := config.Load(configFile)
			if err != nil {
				earlyLog.Error("Failed to load config: %v", err)
				return err
			}

			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			ctx = logging.WithServiceName(ctx, constants.ServiceName)

			log.InfowCtx(ctx, "Starting conversions bridge",
				"environment", cfg.Environment,
				"port", cfg.Server.Port,
				"allow_unsigned", cfg.Webhook.AllowUnsigned,
				"skip_expression", cfg.Mapping.SkipExpression != "",
			)

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				return err
			}

			if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.ErrorwCtx(ctx, "Service stopped with error", "error", err)
				return err
			}
			log.InfowCtx(ctx, "Service shutdown complete")
			return nil
		},
	}
}

// signCmd prints the signature header value for a body, for exercising a
// running instance by hand.
func signCmd() *cobra.Command {
	var (
		secret string
		file   string
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the webhook signature for a request body",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("SHOPIFY_WEBHOOK_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("secret is required: use --secret or SHOPIFY_WEBHOOK_SECRET")
			}

			var (
				body []byte
				err  error
			)
			if file == "" || file == "-" {
				body, err = io.ReadAll(cmd.InOrStdin())
			} else {
				body, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("failed to read body: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), signature.Sign(secret, body))
			return err
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "Webhook signing secret")
	cmd.Flags().StringVar(&file, "file", "", "Body file, stdin when empty or -")

	return cmd
}
