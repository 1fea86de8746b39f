package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
)

// AMQPNotifier publishes loan events to a durable topic exchange.
type AMQPNotifier struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   *slog.Logger
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// stray characters before the scheme, e.g. from copy-pasted secrets
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewAMQPNotifier dials the broker and declares the exchange.
func NewAMQPNotifier(amqpURL, exchange string, logger *slog.Logger) (*AMQPNotifier, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := declareExchange(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &AMQPNotifier{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

func declareExchange(ch *amqp091.Channel, exchange string) error {
	return ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	)
}

// Notify publishes the event with the event name as routing key. A failed publish
// reopens the channel and is retried once.
func (n *AMQPNotifier) Notify(ctx context.Context, event string, loan *domain.LoanApplication) error {
	body, err := json.Marshal(NewLoanEvent(event, loan))
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    fmt.Sprintf("%s:%s:%d", loan.ReferenceNumber, event, time.Now().UnixNano()),
		Timestamp:    time.Now(),
		Body:         body,
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.channel.PublishWithContext(ctx, n.exchange, event, false, false, msg)
	if err == nil {
		return nil
	}

	n.logger.WarnContext(ctx, "publish failed; reopening channel",
		"component", "notifier", "exchange", n.exchange, "routing_key", event, "error", err)

	ch, chErr := n.conn.Channel()
	if chErr != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	if exErr := declareExchange(ch, n.exchange); exErr != nil {
		ch.Close()
		return fmt.Errorf("publish %s: %w", event, exErr)
	}
	n.channel = ch

	if err := n.channel.PublishWithContext(ctx, n.exchange, event, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// Close closes the channel and the connection.
func (n *AMQPNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		n.conn.Close()
	}
}
