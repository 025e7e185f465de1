package api

import (
	"encoding/json"
	"fmt"
	"time"

	"inventaris/server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// LedgerEvent - движение по журналу в том виде, в каком его видят подписчики
type LedgerEvent struct {
	MovementID    string          `json:"movement_id"`
	RawMaterialID string          `json:"raw_material_id"`
	Delta         decimal.Decimal `json:"delta"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Reason        string          `json:"reason"`
	ReferenceID   string          `json:"reference_id"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewLedgerEvent строит событие из записи журнала
func NewLedgerEvent(m models.StockMovement) LedgerEvent {
	return LedgerEvent{
		MovementID:    m.ID,
		RawMaterialID: m.RawMaterialID,
		Delta:         m.Delta,
		BalanceAfter:  m.BalanceAfter,
		Reason:        string(m.Reason),
		ReferenceID:   m.ReferenceID,
		Note:          m.Note,
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

// EncodeLedgerEvent сериализует событие в Protobuf (google.protobuf.Struct).
// Количества передаются строками, чтобы не терять точность
func EncodeLedgerEvent(event LedgerEvent) ([]byte, error) {
	payload, err := structpb.NewStruct(map[string]interface{}{
		"movement_id":     event.MovementID,
		"raw_material_id": event.RawMaterialID,
		"delta":           event.Delta.String(),
		"balance_after":   event.BalanceAfter.String(),
		"reason":          event.Reason,
		"reference_id":    event.ReferenceID,
		"note":            event.Note,
		"created_at":      event.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки события журнала: %w", err)
	}
	return proto.Marshal(payload)
}

// DecodeLedgerEvent разбирает событие, записанное EncodeLedgerEvent
func DecodeLedgerEvent(data []byte) (*LedgerEvent, error) {
	var payload structpb.Struct
	if err := proto.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("ошибка парсинга Protobuf события: %w", err)
	}
	fields := payload.GetFields()
	str := func(key string) string {
		return fields[key].GetStringValue()
	}

	event := &LedgerEvent{
		MovementID:    str("movement_id"),
		RawMaterialID: str("raw_material_id"),
		Reason:        str("reason"),
		ReferenceID:   str("reference_id"),
		Note:          str("note"),
	}
	if event.RawMaterialID == "" {
		return nil, fmt.Errorf("событие журнала без raw_material_id")
	}

	var err error
	if event.Delta, err = decimal.NewFromString(str("delta")); err != nil {
		return nil, fmt.Errorf("некорректная delta в событии %s: %w", event.MovementID, err)
	}
	if event.BalanceAfter, err = decimal.NewFromString(str("balance_after")); err != nil {
		return nil, fmt.Errorf("некорректный balance_after в событии %s: %w", event.MovementID, err)
	}
	if event.CreatedAt, err = time.Parse(time.RFC3339Nano, str("created_at")); err != nil {
		return nil, fmt.Errorf("некорректное время в событии %s: %w", event.MovementID, err)
	}
	return event, nil
}

// ledgerFrame - сообщение WebSocket ленты
func ledgerFrame(event LedgerEvent) ([]byte, error) {
	return json.Marshal(gin.H{"type": "stock_movement", "data": event})
}
