// Package main is the entry point for the tracing configuration service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/vyrodovalexey/avtraced/internal/admin"
	"github.com/vyrodovalexey/avtraced/internal/config"
	"github.com/vyrodovalexey/avtraced/internal/kube"
	"github.com/vyrodovalexey/avtraced/internal/observability"
	"github.com/vyrodovalexey/avtraced/internal/registry"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// shutdownTimeout bounds graceful shutdown of the admin server.
const shutdownTimeout = 10 * time.Second

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	kubeEnabled bool
	kubeconfig  string
	namespace   string
	adminAddr   string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	if err := run(flags, logger); err != nil {
		logger.Error("service exited with error", observability.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// parseFlags parses command line flags with environment fallbacks.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("TRACED_CONFIG_PATH", ""),
		"Path to a TracingService YAML file (optional)")
	kubeEnabled := flag.Bool("kube", getEnvOrDefault("TRACED_KUBE", "") == "true",
		"Watch Kubernetes Service annotations for TracingService documents")
	kubeconfig := flag.String("kubeconfig", getEnvOrDefault("KUBECONFIG", ""),
		"Path to kubeconfig (empty for in-cluster config)")
	namespace := flag.String("namespace", getEnvOrDefault("TRACED_NAMESPACE", ""),
		"Namespace to watch (empty for all namespaces)")
	adminAddr := flag.String("admin-addr", getEnvOrDefault("TRACED_ADMIN_ADDR", ":8877"),
		"Admin API listen address")
	logLevel := flag.String("log-level", getEnvOrDefault("TRACED_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("TRACED_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		kubeEnabled: *kubeEnabled,
		kubeconfig:  *kubeconfig,
		namespace:   *namespace,
		adminAddr:   *adminAddr,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("avtraced version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// run wires all components and blocks until a termination signal.
func run(flags cliFlags, logger observability.Logger) error {
	logger.Info("starting avtraced",
		observability.String("version", version),
		observability.String("commit", gitCommit),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := observability.NewMetrics("avtraced")
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	reg := registry.New(registry.WithSizeReporter(metrics))

	watcher, err := startFileWatcher(ctx, flags, reg, metrics, logger)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer func() { _ = watcher.Stop() }()
	}

	syncer, err := startKubeSync(ctx, flags, reg, metrics, logger)
	if err != nil {
		return err
	}

	server := admin.NewServer(reg,
		admin.WithLogger(logger),
		admin.WithMetrics(metrics),
		admin.WithReadinessCheck(func() bool {
			if syncer != nil {
				return syncer.HasSynced()
			}
			return true
		}),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(flags.adminAddr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("admin server failed: %w", err)
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin server shutdown failed: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// startFileWatcher starts the file source when -config is set.
func startFileWatcher(
	ctx context.Context,
	flags cliFlags,
	reg *registry.Registry,
	metrics *observability.Metrics,
	logger observability.Logger,
) (*config.Watcher, error) {
	if flags.configPath == "" {
		return nil, nil
	}

	path, err := config.ResolveConfigPath(flags.configPath)
	if err != nil {
		return nil, err
	}

	watcher, err := config.NewWatcher(path,
		func(docs []*config.TracingService) {
			reg.Replace(docs)
			metrics.RecordConfigApplied("file")
		},
		config.WithLogger(logger),
		config.WithErrorCallback(func(err error) {
			metrics.RecordConfigRejected("file", "reload")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	if err := watcher.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start config watcher: %w", err)
	}

	return watcher, nil
}

// startKubeSync starts the Kubernetes source when -kube is set.
func startKubeSync(
	ctx context.Context,
	flags cliFlags,
	reg *registry.Registry,
	metrics *observability.Metrics,
	logger observability.Logger,
) (*kube.Syncer, error) {
	if !flags.kubeEnabled {
		return nil, nil
	}

	client, err := newKubeClient(flags.kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	syncer := kube.NewSyncer(client, flags.namespace, reg,
		kube.WithLogger(logger),
		kube.WithRecorder(metrics),
	)

	go syncer.Run(ctx)

	return syncer, nil
}

// newKubeClient builds a clientset from kubeconfig or in-cluster config.
func newKubeClient(kubeconfig string) (kubernetes.Interface, error) {
	var (
		cfg *rest.Config
		err error
	)

	if kubeconfig != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	} else {
		cfg, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, err
	}

	return kubernetes.NewForConfig(cfg)
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
