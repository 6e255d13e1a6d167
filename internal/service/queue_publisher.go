// Package service holds outbound adapters used by the party manager.  The
// publisher here pushes party events to RabbitMQ.  Errors are logged and
// returned.
package service

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/watch-party/internal/config"
    q "github.com/iliyamo/watch-party/internal/queue"
)

// PartyEventPublisher publishes party events to the configured queue.  A
// connection is opened per event.
type PartyEventPublisher struct {
    cfg config.QueueConfig
}

// NewPartyEventPublisher returns a publisher for cfg.PartyQueue.
func NewPartyEventPublisher(cfg config.QueueConfig) *PartyEventPublisher {
    return &PartyEventPublisher{cfg: cfg}
}

// PublishPartyEvent sends event as a persistent JSON message.  The event id
// becomes the AMQP message id so consumers can drop redeliveries.
func (p *PartyEventPublisher) PublishPartyEvent(ctx context.Context, event q.PartyEvent) error {
    body, err := json.Marshal(event)
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    conn, err := amqp.Dial(p.cfg.URL)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(p.cfg.PartyQueue, true, false, false, false, nil); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    event.ID,
        Type:         event.Type,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", p.cfg.PartyQueue, false, false, pub); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }
    return nil
}
