package client

import (
	"rentpay/pkg/kafka"
	kafka_config "rentpay/pkg/kafka/config"
	kafka_middleware "rentpay/pkg/kafka/middleware"
	"rentpay/pkg/logger"
)

func (c *Client) SetKafkaProducer(log *logger.Logger, cfg *kafka_config.Config, topic, dlqTopic string) {
	producer, err := kafka.NewProducer(cfg, topic, dlqTopic, log)
	if err != nil {
		log.Fatal("Failed to create Kafka producer", "topic", topic, "error", err)
	}

	if cfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware())
	}

	log.Info("Kafka producer ready", "topic", topic, "dlq_topic", dlqTopic, "brokers", cfg.Brokers)
	c.KafkaProducer = producer
}
