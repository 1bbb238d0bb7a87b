package main

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/financeai/bff/config"
	"github.com/financeai/bff/pkg/helpers"
)

// billingEvent mirrors the message shape published by the billing bridge.
type billingEvent struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Object string `json:"object"`
}

func main() {
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-billing-worker", cfg.Env)

	if cfg.RabbitMQURL == "" || cfg.RabbitMQBillingQueue == "" {
		log.Fatal("RabbitMQ not configured")
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("amqp dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("amqp channel: %v", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(16, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	if _, err := ch.QueueDeclare(cfg.RabbitMQBillingQueue, true, false, false, false, nil); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitMQBillingQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for msg := range msgs {
			var ev billingEvent
			if err := json.Unmarshal(msg.Body, &ev); err != nil {
				logger.WithField("err", err.Error()).Warn("bad billing event message")
				_ = msg.Nack(false, false)
				continue
			}

			// Append-only event log: record the event; subscription state
			// transitions belong to a downstream consumer, not the BFF.
			logger.WithField("event_id", ev.ID).
				WithField("type", ev.Type).
				WithField("object", ev.Object).
				Info("billing event received")

			_ = msg.Ack(false)
		}
		close(done)
	}()

	logger.Infof("billing worker listening on queue=%s", cfg.RabbitMQBillingQueue)
	<-stop
	logger.Info("shutting down...")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}
