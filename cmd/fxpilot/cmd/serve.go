package cmd

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/config"
	"github.com/rustyeddy/fxpilot/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control surface and the trading loop",
	Long: `Serve loads the configuration, wires the gateway, advisor, risk manager
and trading bot, and serves the operator API:

  GET  /status    current bot snapshot
  POST /control   {"action": "start" | "stop" | "refresh"}
  POST /config    {"riskPerTrade", "maxConcurrentTrades", "maxDailyDrawdown"}
  GET  /metrics   prometheus metrics
  GET  /ping      liveness

The bot starts stopped unless --autostart is given.

Example:
  fxpilot serve -f config.yaml --port 8000 --autostart`,
	RunE: runServe,
}

var (
	serveHost      string
	servePort      int
	serveAutostart bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "listen host (overrides server.listen)")
	serveCmd.Flags().IntVar(&servePort, "port", 8000, "listen port (overrides server.listen)")
	serveCmd.Flags().BoolVar(&serveAutostart, "autostart", false, "start the trading loop immediately")
}

// listenAddr prefers explicit flags over the configured address.
func listenAddr(cmd *cobra.Command, cfg *config.Config) string {
	flags := cmd.Flags()
	if !flags.Changed("host") && !flags.Changed("port") {
		return cfg.Server.Listen
	}
	host, port := serveHost, strconv.Itoa(servePort)
	if h, p, err := net.SplitHostPort(cfg.Server.Listen); err == nil {
		if !flags.Changed("host") {
			host = h
		}
		if !flags.Changed("port") {
			port = p
		}
	}
	return net.JoinHostPort(host, port)
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LoggerOptions())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, a.Close()) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveAutostart {
		if err := a.bot.Start(ctx); err != nil {
			log.Error("autostart failed", zap.Error(err))
		}
	}

	log.Info("fxpilot serving",
		zap.String("version", version),
		zap.String("gateway", cfg.Gateway.Kind),
		zap.Strings("symbols", cfg.General.Symbols))
	return a.server.Run(ctx, listenAddr(cmd, cfg))
}
