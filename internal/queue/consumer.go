// Package queue contains the background consumer that listens to the party
// events queue and writes one line per event to <log dir>/party.log.
package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/watch-party/internal/config"
)

// StartPartyConsumer connects to RabbitMQ, declares the party events queue
// (durable), and starts consuming messages.  Each message is appended to
// party.log under cfg.LogDir.  The function runs a reconnect loop and only
// returns when ctx is cancelled; processing errors are logged and the
// offending message is rejected so the server continues operating.
func StartPartyConsumer(ctx context.Context, cfg config.QueueConfig) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(cfg.URL)
        if err != nil {
            log.Printf("party-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, cfg)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Printf("party-consumer: consume loop ended: %v; reconnecting", err)
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg config.QueueConfig) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("party-consumer: set QoS failed: %v", err)
    }

    if _, err := ch.QueueDeclare(cfg.PartyQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(cfg.PartyQueue, "", false, false, false, false, nil)
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
            if err := handleMessage(cfg.LogDir, d.Body); err != nil {
                log.Printf("party-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func handleMessage(dir string, body []byte) error {
    var ev PartyEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" || ev.PartyID == 0 {
        return fmt.Errorf("incomplete event %q", ev.ID)
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(dir, "party.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(formatEvent(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func formatEvent(ev PartyEvent) string {
    line := fmt.Sprintf("[%s] %s | event_id=%s | party_id=%d | client_id=%d",
        ev.OccurredAt, ev.Type, ev.ID, ev.PartyID, ev.ClientID)
    if ev.MovieID != 0 {
        line += fmt.Sprintf(" | movie_id=%d", ev.MovieID)
    }
    if ev.HostID != 0 {
        line += fmt.Sprintf(" | host_id=%d", ev.HostID)
    }
    return line + "\n"
}
