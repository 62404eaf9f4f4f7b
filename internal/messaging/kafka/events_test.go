package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
)

func TestParseOrderHistoryEvent(t *testing.T) {
	event := OrderHistoryEvent{
		EventID:   "evt-1",
		Timestamp: time.Date(2004, 4, 4, 4, 4, 4, 0, time.UTC),
		Orders: []OrderPayload{{
			ID:       4,
			ClientID: 123456,
			State:    "created",
			Amount:   "4000.00",
			Items: []OrderItemPayload{
				{SkuID: 4001, Quantity: 41, UnitPrice: "401.00"},
			},
		}},
	}
	raw, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	parsed, err := ParseOrderHistoryEvent(&sarama.ConsumerMessage{Value: raw})
	if err != nil {
		t.Fatalf("ParseOrderHistoryEvent: %v", err)
	}

	if parsed.EventID != "evt-1" {
		t.Fatalf("event id lost: %q", parsed.EventID)
	}
	if len(parsed.Orders) != 1 || parsed.Orders[0].ID != 4 {
		t.Fatalf("orders parsed wrong: %+v", parsed.Orders)
	}
	if parsed.Orders[0].Items[0].UnitPrice != "401.00" {
		t.Fatalf("unit price parsed wrong: %q", parsed.Orders[0].Items[0].UnitPrice)
	}
}

func TestParseOrderHistoryEventMalformed(t *testing.T) {
	if _, err := ParseOrderHistoryEvent(&sarama.ConsumerMessage{Value: []byte("{")}); err == nil {
		t.Fatal("expected error for malformed event")
	}
}
