package queue

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/train-station/internal/model"
    "github.com/iliyamo/train-station/internal/reservation"
)

// Publisher sends OrderPlacedEvent messages to RabbitMQ.  Each publish
// opens its own connection, so a broker outage never blocks startup and
// a later publish succeeds once the broker is back.  Errors are logged
// and returned; the reservation service treats them as non-fatal.
type Publisher struct {
    url         string
    dialTimeout time.Duration
}

var _ reservation.Publisher = (*Publisher)(nil)

// NewPublisher returns a Publisher for the broker at url.  dialTimeout
// bounds the TCP connect and the AMQP handshake together; non-positive
// values mean three seconds.
func NewPublisher(url string, dialTimeout time.Duration) *Publisher {
    if dialTimeout <= 0 {
        dialTimeout = 3 * time.Second
    }
    return &Publisher{url: url, dialTimeout: dialTimeout}
}

// dial connects to the broker, giving up at the earlier of the dial
// timeout and the deadline of ctx.
func (p *Publisher) dial(ctx context.Context) (*amqp.Connection, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    timeout := p.dialTimeout
    if dl, ok := ctx.Deadline(); ok {
        if left := time.Until(dl); left < timeout {
            timeout = left
        }
    }
    if timeout <= 0 {
        return nil, context.DeadlineExceeded
    }
    return amqp.DialConfig(p.url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(timeout),
    })
}

// PublishOrderPlaced publishes the event for o to the order.placed queue
// as a persistent message.
func (p *Publisher) PublishOrderPlaced(ctx context.Context, o *model.Order) error {
    ev := NewOrderPlacedEvent(o)
    body, err := json.Marshal(ev)
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    conn, err := p.dial(ctx)
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
    if _, err := ch.QueueDeclare(
        OrderPlacedQueue, // name
        true,             // durable
        false,            // autoDelete
        false,            // exclusive
        false,            // noWait
        nil,              // args
    ); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    ev.EventID,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",               // default exchange
        OrderPlacedQueue, // routing key = queue name
        false,            // mandatory
        false,            // immediate
        pub,
    ); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }
    return nil
}
