package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ismailopm12/gamesbazar.net/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockWorkerRoutesWalletCredited(t *testing.T) {
	w := NewStockWorker(nil, nil)

	event := models.WalletCreditedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeWalletCredited,
			Timestamp: time.Now(),
		},
		UserID: "user-1",
		Amount: 500,
		Source: "gateway_topup",
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	err = w.eventHandler.HandleMessage(context.Background(), kafka.Message{Value: payload})
	assert.NoError(t, err)
}

func TestStockWorkerIgnoresUnknownEvents(t *testing.T) {
	w := NewStockWorker(nil, nil)

	payload, err := json.Marshal(models.BaseEvent{
		EventID:   "evt-2",
		EventType: "SOMETHING_ELSE",
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	err = w.eventHandler.HandleMessage(context.Background(), kafka.Message{Value: payload})
	assert.NoError(t, err)
}
