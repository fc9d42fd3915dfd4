package client

import (
	"context"
	"time"

	"rentpay/pkg/kafka"
	"rentpay/pkg/logger"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"
)

// Client holds the process-wide infrastructure connections.
type Client struct {
	Mongo         *mongo.Client
	KafkaProducer *kafka.Producer
	Asynq         *asynq.Client
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) GracefulShutdown(log *logger.Logger, timeout time.Duration) {
	if c.KafkaProducer != nil {
		if err := c.KafkaProducer.Close(); err != nil {
			log.Error("Failed to close Kafka producer", "error", err)
		}
	}

	if c.Asynq != nil {
		if err := c.Asynq.Close(); err != nil {
			log.Error("Failed to close Asynq client", "error", err)
		}
	}

	if c.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := c.Mongo.Disconnect(ctx); err != nil {
			log.Error("Failed to disconnect from MongoDB", "error", err)
		}
	}

	log.Info("Infrastructure clients closed")
}
