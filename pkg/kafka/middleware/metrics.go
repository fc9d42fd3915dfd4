package kafka_middleware

import (
	"context"
	"time"

	"rentpay/pkg/kafka"
	"rentpay/pkg/metrics"
)

// MetricsProducerMiddleware records publish counts and latency per topic.
func MetricsProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)

		metrics.KafkaPublishDuration.WithLabelValues(msg.Topic).Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = kafka.ClassifyError(err).String()
		}
		metrics.KafkaMessagesTotal.WithLabelValues(msg.Topic, outcome).Inc()

		return err
	}
}
