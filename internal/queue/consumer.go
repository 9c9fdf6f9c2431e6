package queue

import (
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/train-station/internal/config"
)

// OrderLogFile is the file inside the log directory that receives one
// line per placed order.
const OrderLogFile = "orders.log"

// StartOrderConsumer connects to RabbitMQ, declares the order.placed
// queue (durable) and appends every message to <LogDir>/orders.log in a
// single-line format.  It reconnects with exponential backoff and never
// returns; run it in its own goroutine.  A message that cannot be handled
// is rejected without requeue so the loop keeps going.
func StartOrderConsumer(cfg config.QueueConfig) {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(cfg.URL)
        if err != nil {
            log.Printf("order-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            time.Sleep(backoff)
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        if err := consumeLoop(conn, cfg.LogDir); err != nil {
            log.Printf("order-consumer: consume loop ended: %v; reconnecting", err)
            _ = conn.Close()
            time.Sleep(2 * time.Second)
        }
    }
}

func consumeLoop(conn *amqp.Connection, dir string) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("order-consumer: set QoS failed: %v", err)
    }
    if _, err := ch.QueueDeclare(OrderPlacedQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(OrderPlacedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := handleMessage(dir, d.Body); err != nil {
            log.Printf("order-consumer: handle message failed: %v", err)
            _ = d.Nack(false, false)
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

func handleMessage(dir string, body []byte) error {
    var ev OrderPlacedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.OrderID == 0 {
        return errors.New("event without order id")
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", dir, err)
    }
    f, err := os.OpenFile(filepath.Join(dir, OrderLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(formatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// formatLine renders ev as one log line, seats as journey/cargo/seat.
func formatLine(ev OrderPlacedEvent) string {
    seats := make([]string, 0, len(ev.Tickets))
    for _, t := range ev.Tickets {
        seats = append(seats, fmt.Sprintf("%d/%d/%d", t.JourneyID, t.Cargo, t.Seat))
    }
    return fmt.Sprintf("[%s] Order placed | order_id=%d | owner_id=%d | event_id=%s | tickets=%d | seats=[%s]\n",
        ev.PlacedAt, ev.OrderID, ev.OwnerID, ev.EventID, len(ev.Tickets), strings.Join(seats, ","))
}
