package api

import (
	"context"
	"log"
	"sync"
	"time"

	"inventaris/server/internal/metrics"
	"inventaris/server/internal/models"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// queueSize - сколько пачек движений может ждать отправки
const queueSize = 1024

// LedgerProducer отправляет движения журнала в Kafka.
// Ключ сообщения - id сырья (одна партиция на сырье). Пачки пишет одна горутина
// в порядке вызовов PublishMovements, так что движения одного сырья не обгоняют друг друга
type LedgerProducer struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan []kafka.Message
	done   chan struct{}
}

// NewLedgerProducer создает producer поверх kafka.Writer с SASL/TLS из dialer
func NewLedgerProducer(brokers []string, topic string, dialer *kafka.Dialer, m *metrics.Metrics) *LedgerProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Transport: &kafka.Transport{
			DialTimeout: dialer.Timeout,
			SASL:        dialer.SASLMechanism,
			TLS:         dialer.TLS,
		},
	}
	log.Printf("📡 Kafka Producer журнала: topic=%s, brokers=%v", topic, brokers)
	return newLedgerProducer(writer, topic, m)
}

func newLedgerProducer(writer messageWriter, topic string, m *metrics.Metrics) *LedgerProducer {
	p := &LedgerProducer{
		writer:  writer,
		topic:   topic,
		timeout: 5 * time.Second,
		metrics: m,
		queue:   make(chan []kafka.Message, queueSize),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *LedgerProducer) run() {
	defer close(p.done)
	for msgs := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			log.Printf("⚠️ Kafka: не удалось отправить %d движений в %s: %v", len(msgs), p.topic, err)
			p.metrics.ObservePublishFailure(len(msgs))
		}
		cancel()
	}
}

// PublishMovements не блокирует коммит: пачка встает в очередь отправки.
// При переполненной очереди или после Close движения отбрасываются и считаются в метрике
func (p *LedgerProducer) PublishMovements(movements []models.StockMovement) {
	msgs := make([]kafka.Message, 0, len(movements))
	for _, movement := range movements {
		payload, err := EncodeLedgerEvent(NewLedgerEvent(movement))
		if err != nil {
			log.Printf("❌ Kafka: ошибка сериализации движения %s: %v", movement.ID, err)
			p.metrics.ObservePublishFailure(1)
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(movement.RawMaterialID),
			Value: payload,
			Time:  movement.CreatedAt,
		})
	}
	if len(msgs) == 0 {
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		log.Printf("⚠️ Kafka: producer закрыт, %d движений пропущено", len(msgs))
		p.metrics.ObservePublishFailure(len(msgs))
		return
	}
	select {
	case p.queue <- msgs:
	default:
		log.Printf("⚠️ Kafka: очередь отправки переполнена, %d движений пропущено", len(msgs))
		p.metrics.ObservePublishFailure(len(msgs))
	}
}

// Close дожидается отправки очереди и закрывает writer
func (p *LedgerProducer) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
	return p.writer.Close()
}

// HubPublisher рассылает движения напрямую в WebSocket хаб (без Kafka)
type HubPublisher struct {
	hub *Hub
}

func NewHubPublisher(hub *Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) PublishMovements(movements []models.StockMovement) {
	for _, movement := range movements {
		frame, err := ledgerFrame(NewLedgerEvent(movement))
		if err != nil {
			log.Printf("❌ WebSocket: ошибка сериализации движения %s: %v", movement.ID, err)
			continue
		}
		if !p.hub.BroadcastMessage(frame) {
			log.Printf("⚠️ WebSocket: очередь переполнена, движение %s пропущено", movement.ID)
		}
	}
}
