package client

import (
	"rentpay/pkg/logger"

	"github.com/hibiken/asynq"
)

func (c *Client) SetAsynq(log *logger.Logger, addr, password string, db int) {
	c.Asynq = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	log.Info("Asynq client ready", "redis_addr", addr, "redis_db", db)
}
