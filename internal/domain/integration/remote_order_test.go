package integration

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFulfillmentStatus(t *testing.T) {
	tests := []struct {
		raw      string
		expected FulfillmentStatus
	}{
		{"open", FulfillmentStatusOpen},
		{" SHIPPED ", FulfillmentStatusShipped},
		{"cancelled", FulfillmentStatusCancelled},
		{"canceled", FulfillmentStatusCancelled},
		{"unknown", FulfillmentStatusUnknown},
		{"in_transit", FulfillmentStatusUnknown},
		{"", FulfillmentStatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseFulfillmentStatus(tt.raw))
		})
	}
}

func TestRemoteOrder_LineStatus(t *testing.T) {
	order := RemoteOrder{OrderID: "o-1", Status: FulfillmentStatusOpen}
	assert.Equal(t, FulfillmentStatusOpen, order.LineStatus(RemoteOrderItem{}))
	assert.Equal(t, FulfillmentStatusShipped, order.LineStatus(RemoteOrderItem{Status: FulfillmentStatusShipped}))
	assert.Equal(t, FulfillmentStatusOpen, order.LineStatus(RemoteOrderItem{Status: FulfillmentStatusUnknown}))

	empty := RemoteOrder{OrderID: "o-2"}
	assert.Equal(t, FulfillmentStatusUnknown, empty.LineStatus(RemoteOrderItem{}))
}

func TestNewRemoteOrderLine(t *testing.T) {
	created := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	order := &RemoteOrder{
		OrderID:   "12-34567-89012",
		Status:    FulfillmentStatusOpen,
		CreatedAt: created,
		Metadata:  json.RawMessage(`{"buyer":"jdoe"}`),
	}
	item := RemoteOrderItem{
		LineItemID: "10001",
		SKU:        "ABC-1",
		Title:      "Widget",
		Quantity:   2,
		UnitPrice:  decimal.RequireFromString("12.50"),
		Currency:   "USD",
	}

	line, err := NewRemoteOrderLine(order, item)
	require.NoError(t, err)
	assert.Equal(t, "12-34567-89012/10001", line.Key())
	assert.Equal(t, FulfillmentStatusOpen, line.Status)
	assert.Equal(t, created, line.OrderCreatedAt)
	assert.False(t, line.StockApplied)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(line.Metadata, &meta))
	assert.Equal(t, "25", meta["line_total"])
	assert.Equal(t, "USD", meta["currency"])
	assert.Equal(t, map[string]any{"buyer": "jdoe"}, meta["order"])

	_, err = NewRemoteOrderLine(&RemoteOrder{}, item)
	assert.Error(t, err)
}

func TestRemoteOrderLine_NotesAppend(t *testing.T) {
	line := &RemoteOrderLine{OrderID: "o", LineItemID: "l"}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	line.AppendNote(at, "decremented 2 (10 -> 8)")
	line.AppendNote(at.Add(time.Hour), "status OPEN -> SHIPPED")

	entries := line.NoteEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "2026-01-02T03:04:05Z decremented 2 (10 -> 8)", entries[0])
	assert.Equal(t, "2026-01-02T04:04:05Z status OPEN -> SHIPPED", entries[1])
}

func TestRemoteOrderLine_TransitionTo(t *testing.T) {
	line := &RemoteOrderLine{Status: FulfillmentStatusOpen}

	prev, changed := line.TransitionTo(FulfillmentStatusOpen, time.Time{})
	assert.False(t, changed)
	assert.Equal(t, FulfillmentStatusOpen, prev)

	modified := time.Now()
	prev, changed = line.TransitionTo(FulfillmentStatusCancelled, modified)
	assert.True(t, changed)
	assert.Equal(t, FulfillmentStatusOpen, prev)
	assert.Equal(t, FulfillmentStatusCancelled, line.Status)
	assert.Equal(t, modified, line.OrderModifiedAt)
}
