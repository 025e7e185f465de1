package api

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

// LedgerWSConsumer читает движения журнала из Kafka и отправляет их в WebSocket
type LedgerWSConsumer struct {
	topic     string
	groupID   string
	reader    *kafka.Reader
	hub       *Hub
	processed int64 // Счетчик переданных событий
}

// NewLedgerWSConsumer создает consumer; каждый экземпляр сервера должен иметь свою group,
// иначе клиенты увидят только часть движений
func NewLedgerWSConsumer(brokers []string, topic, groupID string, dialer *kafka.Dialer, hub *Hub) *LedgerWSConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset, // Лента живая, историю отдает /movements
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
		Dialer:      dialer,
	})
	return &LedgerWSConsumer{
		topic:   topic,
		groupID: groupID,
		reader:  reader,
		hub:     hub,
	}
}

// Start запускает чтение до отмены ctx
func (lc *LedgerWSConsumer) Start(ctx context.Context) {
	log.Printf("📡 Kafka WS Consumer журнала запущен: topic=%s, groupID=%s", lc.topic, lc.groupID)
	go func() {
		for {
			msg, err := lc.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					log.Println("🛑 Kafka WS Consumer журнала остановлен")
					return
				}
				log.Printf("⚠️ Kafka WS Consumer ошибка чтения: %v", err)
				time.Sleep(1 * time.Second)
				continue
			}
			if err := lc.forward(msg.Value); err != nil {
				log.Printf("⚠️ Kafka WS Consumer: пропущено сообщение offset=%d: %v", msg.Offset, err)
			}
		}
	}()
}

// forward разбирает событие и отдает его в хаб
func (lc *LedgerWSConsumer) forward(value []byte) error {
	event, err := DecodeLedgerEvent(value)
	if err != nil {
		return err
	}
	frame, err := ledgerFrame(*event)
	if err != nil {
		return err
	}
	lc.hub.BroadcastMessage(frame)
	atomic.AddInt64(&lc.processed, 1)
	return nil
}

// Processed - сколько событий передано в хаб
func (lc *LedgerWSConsumer) Processed() int64 {
	return atomic.LoadInt64(&lc.processed)
}

func (lc *LedgerWSConsumer) Close() error {
	return lc.reader.Close()
}
