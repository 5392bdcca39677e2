package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/matcher/internal/app"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume scrap-ready jobs from Kafka and expose metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, serve)
		},
	}
}

func serve(ctx context.Context, a *app.App) error {
	if !a.Config.KafkaEnabled {
		return errors.New("serve requires KAFKA_ENABLED=true")
	}
	log := a.Logger.WithContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              a.Config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Serving metrics on %s", a.Config.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	consumer := a.NewScrapConsumer()
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	log.Infof("Consuming %s as %s", a.Config.KafkaScrapTopic, a.Config.KafkaConsumerGroup)

	var err error
	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err = <-serverErr:
		log.WithError(err).Error("Metrics server failed")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if stopErr := consumer.Stop(stopCtx); stopErr != nil {
		log.WithError(stopErr).Warn("Failed to stop consumer")
	}
	if shutdownErr := server.Shutdown(stopCtx); shutdownErr != nil {
		log.WithError(shutdownErr).Warn("Failed to stop metrics server")
	}
	return err
}
