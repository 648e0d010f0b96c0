package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// SettlementLogFile is the name of the file the consumer appends to.
const SettlementLogFile = "settlements.log"

// Consumer listens to the route.settled queue and appends one line per
// event to <dir>/settlements.log.
type Consumer struct {
	url string
	dir string
	log *zap.Logger
	mu  sync.Mutex
}

// NewConsumer returns a consumer for the broker at url writing into dir.
func NewConsumer(url, dir string, log *zap.Logger) *Consumer {
	if url == "" {
		url = DefaultURL
	}
	if dir == "" {
		dir = "logs"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{url: url, dir: dir, log: log.Named("settlement-consumer")}
}

// Run connects to RabbitMQ, declares the queue and consumes until ctx is
// cancelled.  Broker failures are retried with exponential backoff capped
// at 30s; a message that cannot be handled is rejected without requeue so
// the loop keeps going.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set QoS failed", zap.Error(err))
	}

	if _, err := ch.QueueDeclare(RouteSettledQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(RouteSettledQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.Body); err != nil {
				c.log.Error("handle message failed", zap.Error(err), zap.String("message_id", d.MessageId))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(body []byte) error {
	var ev RouteSettledEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.RouteID == 0 {
		return errors.New("event without route_id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.dir, SettlementLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as one human-friendly log line.
func FormatLine(ev RouteSettledEvent) string {
	msg := strings.ReplaceAll(ev.Message, "\n", " ")
	return fmt.Sprintf("[%s] Route settled | route_id=%d | date=%s | driver_id=%d | truck_id=%d | status=%s | strategy=%s | debt=%s | delta=%d | by=%d | message=%q\n",
		ev.SettledAt, ev.RouteID, ev.RouteDate, ev.DriverID, ev.TruckID, ev.Status, ev.Strategy, ev.DebtAmount, ev.Delta, ev.SettledBy, msg)
}
