package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"cart-analytics/internal/config"
	"cart-analytics/internal/models"
	"cart-analytics/internal/pipeline"
)

const EventRunCompleted = "cart_facts.rebuilt"

// RunCompleted tells downstream consumers a new fact set is available.
type RunCompleted struct {
	Event           string         `json:"event"`
	RunID           string         `json:"run_id"`
	Source          string         `json:"source"`
	Facts           int            `json:"facts"`
	Rejected        int            `json:"rejected"`
	Input           map[string]int `json:"input"`
	AbandonmentRate float64        `json:"abandonment_rate"`
	LostRevenue     float64        `json:"lost_revenue"`
	DurationMS      int64          `json:"duration_ms"`
	AssembledAt     time.Time      `json:"assembled_at"`
}

func NewRunCompleted(src string, fs *pipeline.FactSet, summary models.Summary) RunCompleted {
	return RunCompleted{
		Event:           EventRunCompleted,
		RunID:           fs.RunID,
		Source:          src,
		Facts:           len(fs.Facts),
		Rejected:        len(fs.Rejections),
		Input:           fs.Stats.Input,
		AbandonmentRate: summary.AbandonmentRate,
		LostRevenue:     summary.LostRevenue,
		DurationMS:      fs.Stats.Duration.Milliseconds(),
		AssembledAt:     fs.Stats.AssembledAt,
	}
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	conn    *amqp.Connection
	channel channel
	queue   string
	logger  *slog.Logger
}

func NewPublisher(cfg config.NotifyConfig, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	p := newPublisher(ch, cfg.Queue, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, queue string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{channel: ch, queue: queue, logger: logger}
}

// Publish sends ev as a persistent JSON message to the default exchange.
func (p *Publisher) Publish(ctx context.Context, ev RunCompleted) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.RunID,
		Type:         ev.Event,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Event, err)
	}

	p.logger.Info("run published", "queue", p.queue, "run_id", ev.RunID)
	return nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
