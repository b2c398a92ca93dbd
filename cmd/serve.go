package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/mentormatch/internal/feedback"
	"github.com/spigell/mentormatch/internal/metrics"
	"github.com/spigell/mentormatch/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to listen on (overrides server.listen)")
	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger("stdout")
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if err := config.validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	logger.Info("starting the mentormatch", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New()
	if err := m.Register(registry); err != nil {
		logger.Fatal("registering metrics", zap.Error(err))
	}

	stack, err := buildRanking(config, logger, m)
	if err != nil {
		logger.Fatal("building the ranking service", zap.Error(err))
	}

	store, storeChecker, closeStore, err := buildFeedbackStore(ctx, config.Feedback, logger)
	if err != nil {
		logger.Fatal("building the feedback store", zap.Error(err))
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("closing the feedback store", zap.Error(err))
		}
	}()

	analyzer, err := buildSentiment(ctx, config.Sentiment, logger)
	if err != nil {
		logger.Fatal("building the sentiment analyzer", zap.Error(err))
	}

	checkers := map[string]server.Checker{}
	if storeChecker != nil {
		checkers["feedback"] = storeChecker
	}

	srv := server.New(server.Config{
		Listen:          config.Server.Listen,
		ReadTimeout:     config.Server.ReadTimeout,
		WriteTimeout:    config.Server.WriteTimeout,
		ShutdownTimeout: config.Server.ShutdownTimeout,
	}, server.Deps{
		Ranking:   stack.service,
		Feedback:  feedback.NewService(store, config.Feedback.Events, logger.Named("feedback")),
		Sentiment: analyzer,
		Metrics:   m,
		Gatherer:  registry,
		Checkers:  checkers,
		Info: server.Info{
			ScoringMode:    stack.scorer.Mode().String(),
			ScoringReason:  stack.scorer.Model().Reason(),
			VocabularySize: stack.engine.VocabularySize(),
			Filters:        stack.pipeline.Describe(),
			Version:        version,
		},
		Logger: logger.Named("http"),
	})

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
