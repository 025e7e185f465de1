package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"inventaris/server/internal/metrics"
	"inventaris/server/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

func sampleMovement() models.StockMovement {
	return models.StockMovement{
		ID:            "mv-1",
		RawMaterialID: "saus",
		Delta:         decimal.RequireFromString("-4500.125"),
		BalanceAfter:  decimal.RequireFromString("7499.875"),
		Reason:        models.MovementReasonSale,
		ReferenceID:   "sale-1",
		CreatedAt:     time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC),
	}
}

func TestLedgerEventRoundTrip(t *testing.T) {
	event := NewLedgerEvent(sampleMovement())
	data, err := EncodeLedgerEvent(event)
	if err != nil {
		t.Fatalf("EncodeLedgerEvent: %v", err)
	}
	decoded, err := DecodeLedgerEvent(data)
	if err != nil {
		t.Fatalf("DecodeLedgerEvent: %v", err)
	}
	if !decoded.Delta.Equal(event.Delta) || !decoded.BalanceAfter.Equal(event.BalanceAfter) {
		t.Fatalf("quantities = %s/%s, want %s/%s", decoded.Delta, decoded.BalanceAfter, event.Delta, event.BalanceAfter)
	}
	if !decoded.CreatedAt.Equal(event.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", decoded.CreatedAt, event.CreatedAt)
	}
	if decoded.Reason != "sale" || decoded.ReferenceID != "sale-1" || decoded.MovementID != "mv-1" {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestDecodeLedgerEventRejectsGarbage(t *testing.T) {
	if _, err := DecodeLedgerEvent([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatal("expected error for invalid protobuf")
	}

	noMaterial := NewLedgerEvent(sampleMovement())
	noMaterial.RawMaterialID = ""
	data, err := EncodeLedgerEvent(noMaterial)
	if err != nil {
		t.Fatalf("EncodeLedgerEvent: %v", err)
	}
	if _, err := DecodeLedgerEvent(data); err == nil {
		t.Fatal("expected error for event without raw_material_id")
	}
}

type fakeWriter struct {
	mu         sync.Mutex
	msgs       []kafka.Message
	err        error
	closed     bool
	active     int
	overlapped bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	w.active++
	if w.active > 1 {
		w.overlapped = true
	}
	w.mu.Unlock()
	// Пауза, чтобы параллельные записи успели пересечься
	time.Sleep(time.Millisecond)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.active--
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestLedgerProducerKeysByMaterial(t *testing.T) {
	writer := &fakeWriter{}
	producer := newLedgerProducer(writer, "inventaris.ledger", nil)

	first := sampleMovement()
	second := sampleMovement()
	second.ID = "mv-2"
	second.RawMaterialID = "keju"
	producer.PublishMovements([]models.StockMovement{first, second})
	if err := producer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !writer.closed {
		t.Fatal("writer was not closed")
	}
	if len(writer.msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(writer.msgs))
	}
	if string(writer.msgs[0].Key) != "saus" || string(writer.msgs[1].Key) != "keju" {
		t.Fatalf("keys = %q, %q", writer.msgs[0].Key, writer.msgs[1].Key)
	}
	event, err := DecodeLedgerEvent(writer.msgs[1].Value)
	if err != nil {
		t.Fatalf("DecodeLedgerEvent: %v", err)
	}
	if event.MovementID != "mv-2" {
		t.Fatalf("movement id = %s, want mv-2", event.MovementID)
	}
}

func TestLedgerProducerKeepsCallOrder(t *testing.T) {
	writer := &fakeWriter{}
	producer := newLedgerProducer(writer, "inventaris.ledger", nil)

	const commits = 20
	for i := 0; i < commits; i++ {
		movement := sampleMovement()
		movement.ID = fmt.Sprintf("mv-%02d", i)
		movement.BalanceAfter = decimal.NewFromInt(int64(i))
		producer.PublishMovements([]models.StockMovement{movement})
	}
	if err := producer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if writer.overlapped {
		t.Fatal("WriteMessages calls overlapped")
	}
	if len(writer.msgs) != commits {
		t.Fatalf("messages = %d, want %d", len(writer.msgs), commits)
	}
	for i, msg := range writer.msgs {
		event, err := DecodeLedgerEvent(msg.Value)
		if err != nil {
			t.Fatalf("DecodeLedgerEvent: %v", err)
		}
		if want := fmt.Sprintf("mv-%02d", i); event.MovementID != want {
			t.Fatalf("message %d = %s, want %s", i, event.MovementID, want)
		}
	}

	// После Close движения не отправляются и не паникуют
	producer.PublishMovements([]models.StockMovement{sampleMovement()})
	if len(writer.msgs) != commits {
		t.Fatalf("messages after Close = %d, want %d", len(writer.msgs), commits)
	}
}

func TestLedgerProducerCountsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	producer := newLedgerProducer(&fakeWriter{err: errors.New("broker down")}, "inventaris.ledger", m)

	producer.PublishMovements([]models.StockMovement{sampleMovement(), sampleMovement()})
	if err := producer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "inventaris_ledger_publish_failures_total" {
			found = true
			if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 2 {
				t.Fatalf("publish failures = %v, want 2", got)
			}
		}
	}
	if !found {
		t.Fatal("publish failure counter not registered")
	}
}

type wsFrame struct {
	Type string      `json:"type"`
	Data LedgerEvent `json:"data"`
}

func readFrame(t *testing.T, hub *Hub) wsFrame {
	t.Helper()
	select {
	case raw := <-hub.broadcast:
		var f wsFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame broadcast")
	}
	return wsFrame{}
}

func TestHubPublisherBroadcastsFrames(t *testing.T) {
	hub := NewHub()
	NewHubPublisher(hub).PublishMovements([]models.StockMovement{sampleMovement()})

	f := readFrame(t, hub)
	if f.Type != "stock_movement" {
		t.Fatalf("frame type = %q", f.Type)
	}
	if f.Data.RawMaterialID != "saus" || !f.Data.BalanceAfter.Equal(decimal.RequireFromString("7499.875")) {
		t.Fatalf("frame data = %+v", f.Data)
	}
}

func TestHubDropsWhenQueueIsFull(t *testing.T) {
	hub := NewHub()
	for i := 0; i < cap(hub.broadcast); i++ {
		if !hub.BroadcastMessage([]byte("x")) {
			t.Fatalf("message %d rejected before queue was full", i)
		}
	}
	if hub.BroadcastMessage([]byte("overflow")) {
		t.Fatal("expected full queue to reject the message")
	}
}

func TestConsumerForwardsDecodedEvents(t *testing.T) {
	hub := NewHub()
	consumer := &LedgerWSConsumer{topic: "inventaris.ledger", hub: hub}

	data, err := EncodeLedgerEvent(NewLedgerEvent(sampleMovement()))
	if err != nil {
		t.Fatalf("EncodeLedgerEvent: %v", err)
	}
	if err := consumer.forward(data); err != nil {
		t.Fatalf("forward: %v", err)
	}
	f := readFrame(t, hub)
	if f.Data.MovementID != "mv-1" || !f.Data.Delta.Equal(decimal.RequireFromString("-4500.125")) {
		t.Fatalf("frame data = %+v", f.Data)
	}

	if err := consumer.forward([]byte{0xff}); err == nil {
		t.Fatal("expected error for undecodable message")
	}
	if consumer.Processed() != 1 {
		t.Fatalf("processed = %d, want 1", consumer.Processed())
	}
}

func TestParseKafkaBrokers(t *testing.T) {
	got := ParseKafkaBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("brokers = %v", got)
	}
	if ParseKafkaBrokers("") != nil {
		t.Fatal("empty brokers must give nil")
	}
}

func TestCreateKafkaDialer(t *testing.T) {
	plainDialer := CreateKafkaDialer("", "", "")
	if plainDialer.SASLMechanism != nil || plainDialer.TLS != nil {
		t.Fatal("dialer without credentials must not enable SASL or TLS")
	}
	secured := CreateKafkaDialer("svc", "secret", "")
	if secured.SASLMechanism == nil || secured.TLS == nil {
		t.Fatal("SASL credentials must enable SASL over TLS")
	}
}
