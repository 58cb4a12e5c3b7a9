package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pgarray/internal/config"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	logDebug   bool
	logJSON    bool

	metricsBackend string
	pushgatewayURL string
	statsdAddr     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "pgarray",
		Short:         "PostgreSQL-style array columns",
		Long:          "Check array column declarations, render their DDL, and load or dump table data.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetOutput(cmd.ErrOrStderr())
			if opts.logJSON {
				logrus.SetFormatter(&logrus.JSONFormatter{})
			}
			if opts.logDebug {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", os.Getenv("PGARRAY_CONFIG"), "declaration file (.yaml, .yml or .json)")
	pf.BoolVar(&opts.logDebug, "debug", envGetBool("DEBUG", false), "set logging level to debug")
	pf.BoolVar(&opts.logJSON, "log-json", envGetBool("LOG_JSON", false), "log as JSON")
	pf.StringVar(&opts.metricsBackend, "metrics-backend", envOr("METRICS_BACKEND", "none"), "metrics backend: none, pushgateway or datadog")
	pf.StringVar(&opts.pushgatewayURL, "pushgateway-url", envOr("PUSHGATEWAY_URL", "http://localhost:9091"), "Pushgateway base URL")
	pf.StringVar(&opts.statsdAddr, "statsd-addr", envOr("DD_DOGSTATSD_URL", "127.0.0.1:8125"), "DogStatsD address")

	root.AddCommand(
		newCheckCmd(opts),
		newDDLCmd(opts),
		newLoadCmd(opts),
		newDumpCmd(opts),
	)
	return root
}

// declaration loads the configured file and fails on error-severity issues.
// Warnings are logged.
func (o *options) declaration() (config.Declaration, config.Issues, error) {
	if o.configPath == "" {
		return config.Declaration{}, nil, errMissingConfig
	}
	decl, err := config.Load(o.configPath)
	if err != nil {
		return config.Declaration{}, nil, err
	}
	issues := config.Validate(decl)
	for _, w := range issues.Warnings() {
		logrus.WithField("path", w.Path).Warn(w.Message)
	}
	return decl, issues, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func envGetBool(key string, defaultValue bool) bool {
	if parsed, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return parsed
	}
	return defaultValue
}

func envOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
