package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ClipFinance/whale-monitor/alert"
	"github.com/ClipFinance/whale-monitor/chains/solana"
	"github.com/ClipFinance/whale-monitor/common/types"
	"github.com/ClipFinance/whale-monitor/config"
	"github.com/ClipFinance/whale-monitor/connectionmonitor"
	"github.com/ClipFinance/whale-monitor/metrics"
	"github.com/ClipFinance/whale-monitor/pipeline"
	"github.com/ardanlabs/conf"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := run(logger); err != nil {
		logger.WithError(err).Fatal("main: exited with error")
	}
}

func run(logger *logrus.Logger) error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			usage, err := config.Usage()
			if err != nil {
				return errors.Wrap(err, "generating config usage")
			}
			fmt.Println(usage)
			return nil
		}
		return errors.Wrap(err, "loading config")
	}

	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logger.SetLevel(level)

	out, err := cfg.String()
	if err != nil {
		return err
	}
	logger.Infof("main: Config :\n%v", out)

	m := metrics.NewMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)

	chainConfig := cfg.ChainConfig()
	chain, err := solana.NewSolanaChain(&chainConfig, logger)
	if err != nil {
		return errors.Wrap(err, "creating solana chain")
	}
	defer chain.ShutdownListeners()

	notifier, err := alert.NewTelegramNotifier(alert.TelegramConfig{
		Token:   cfg.TelegramToken,
		ChatID:  cfg.TelegramChatID,
		APIURL:  cfg.TelegramApiUrl,
		Proxy:   cfg.TelegramProxy,
		Timeout: cfg.TelegramTimeout,
	})
	if err != nil {
		return errors.Wrap(err, "creating telegram notifier")
	}
	if !notifier.Enabled() {
		logger.Warn("main: Telegram credentials not set, alerts are only logged")
	}

	policy, err := alert.NewDeliveryPolicy(cfg.DeliveryPolicy, cfg.DeliveryAttempts, cfg.DeliveryRetryDelay)
	if err != nil {
		return err
	}
	alerts := alert.NewDispatcher(notifier, policy, logger, m)

	p, err := pipeline.NewBuilder(logger).
		WithChain(chain).
		WithAlertSink(alerts).
		WithFilter(types.LogFilter{
			ProgramID:  cfg.ProgramID,
			Commitment: cfg.Commitment,
		}).
		WithOptions(pipeline.Options{
			QueueCapacity:  cfg.QueueCapacity,
			MaxConcurrency: cfg.MaxConcurrency,
			ShutdownGrace:  cfg.ShutdownGrace,
			DedupTTL:       cfg.DedupTtl,
			Resolver: pipeline.ResolverConfig{
				Threshold:        cfg.AlertThreshold,
				ExplorerURL:      cfg.ExplorerUrl,
				LookupTimeout:    cfg.LookupTimeout,
				LookupAttempts:   cfg.LookupAttempts,
				LookupRetryDelay: cfg.LookupRetryDelay,
			},
		}).
		WithMetrics(m).
		Build()
	if err != nil {
		return errors.Wrap(err, "building pipeline")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := connectionmonitor.NewConnectionMonitor(chain, m, logger, chainConfig.Name, cfg.HealthCheckInterval)
	if err := monitor.Start(ctx); err != nil {
		return errors.Wrap(err, "starting connection monitor")
	}
	defer monitor.Stop()

	metricsServer := &http.Server{
		Addr:              net.JoinHostPort("0.0.0.0", strconv.Itoa(cfg.MetricsPort)),
		Handler:           metricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsServerError := make(chan error, 1)
	go func() {
		logger.Infof("main: Starting metrics server on addr [%s].", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsServerError <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	pipelineError := make(chan error, 1)
	go func() {
		pipelineError <- p.Run(ctx)
	}()

	select {
	case err := <-pipelineError:
		if err != nil {
			return errors.Wrap(err, "monitor stopped")
		}
		logger.Info("main: Received shutdown signal, shut down complete")
		return nil
	case err := <-metricsServerError:
		stop()
		<-pipelineError
		return errors.Wrap(err, "starting metrics endpoint")
	}
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
