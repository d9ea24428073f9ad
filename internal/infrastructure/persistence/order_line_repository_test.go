package persistence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrderLine(t *testing.T, orderID, lineID string) *integration.RemoteOrderLine {
	t.Helper()
	order := &integration.RemoteOrder{
		OrderID:    orderID,
		Status:     integration.FulfillmentStatusOpen,
		CreatedAt:  time.Now().Add(-time.Hour),
		ModifiedAt: time.Now().Add(-time.Hour),
		Metadata:   json.RawMessage(`{"buyer_username":"buyer1"}`),
	}
	item := integration.RemoteOrderItem{
		LineItemID: lineID,
		SKU:        "ABC-1",
		Title:      "Widget",
		Quantity:   2,
		UnitPrice:  decimal.RequireFromString("4.50"),
		Currency:   "USD",
	}
	line, err := integration.NewRemoteOrderLine(order, item)
	require.NoError(t, err)
	return line
}

func TestGormRemoteOrderLineRepository_Claim(t *testing.T) {
	ctx := context.Background()
	repo := NewGormRemoteOrderLineRepository(newTestDB(t))

	line := newOrderLine(t, "O-1", "L-1")
	claimed, err := repo.Claim(ctx, line)
	require.NoError(t, err)
	assert.True(t, claimed)

	again := newOrderLine(t, "O-1", "L-1")
	claimed, err = repo.Claim(ctx, again)
	require.NoError(t, err)
	assert.False(t, claimed, "duplicate key must not insert a second row")

	lines, err := repo.FindByOrderID(ctx, "O-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, line.ID, lines[0].ID)
}

func TestGormRemoteOrderLineRepository_UpdateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewGormRemoteOrderLineRepository(newTestDB(t))

	line := newOrderLine(t, "O-1", "L-1")
	_, err := repo.Claim(ctx, line)
	require.NoError(t, err)

	line.StockApplied = true
	line.AppendNote(time.Now(), "decremented 2 (10 -> 8)")
	_, changed := line.TransitionTo(integration.FulfillmentStatusShipped, time.Now())
	require.True(t, changed)
	require.NoError(t, repo.Update(ctx, line))

	found, err := repo.FindByKey(ctx, "O-1", "L-1")
	require.NoError(t, err)
	assert.Equal(t, integration.FulfillmentStatusShipped, found.Status)
	assert.True(t, found.StockApplied)
	require.Len(t, found.NoteEntries(), 1)
	assert.Contains(t, found.NoteEntries()[0], "decremented 2 (10 -> 8)")

	var meta map[string]any
	require.NoError(t, json.Unmarshal(found.Metadata, &meta))
	assert.Equal(t, "Widget", meta["title"])
	assert.Equal(t, "9", meta["line_total"])

	_, err = repo.FindByKey(ctx, "O-1", "L-2")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	missing := newOrderLine(t, "O-9", "L-9")
	assert.ErrorIs(t, repo.Update(ctx, missing), shared.ErrNotFound)
}

func TestGormAuditLogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormAuditLogRepository(newTestDB(t))

	require.NoError(t, repo.AppendLog(ctx, integration.AuditEntityOrderLine, "O-1/L-1", "first"))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, repo.AppendLog(ctx, integration.AuditEntityOrderLine, "O-1/L-1", "second"))
	require.NoError(t, repo.AppendLog(ctx, integration.AuditEntityOrderLine, "O-2/L-1", "other"))

	entries, err := repo.FindByEntity(ctx, integration.AuditEntityOrderLine, "O-1/L-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Message)
	assert.Equal(t, "first", entries[1].Message)
}
