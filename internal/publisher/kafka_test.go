package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"biopro-irradiation/internal/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testPublisher() (*KafkaPublisher, *fakeWriter, *fakeWriter) {
	quarantine := &fakeWriter{}
	modified := &fakeWriter{}
	return &KafkaPublisher{
		quarantineWriter:      quarantine,
		productModifiedWriter: modified,
		logger:                zap.NewNop(),
	}, quarantine, modified
}

func TestPublishQuarantine_Success(t *testing.T) {
	publisher, quarantine, _ := testPublisher()

	event := &models.QuarantineProduct{
		EventID: "evt-1",
		Products: []models.QuarantineProductInput{
			{UnitNumber: "W123456789", ProductCode: "E0001"},
		},
		TriggeredBy: models.TriggeredByIrradiationSystem,
		ReasonKey:   models.ReasonOutOfStorageTimeExceeded,
		PerformedBy: "operator1",
	}

	err := publisher.PublishQuarantine(context.Background(), event)

	require.NoError(t, err)
	require.Len(t, quarantine.messages, 1)
	assert.Equal(t, []byte("W123456789"), quarantine.messages[0].Key)

	var decoded models.QuarantineProduct
	require.NoError(t, json.Unmarshal(quarantine.messages[0].Value, &decoded))
	assert.Equal(t, "evt-1", decoded.EventID)
	assert.Equal(t, models.ReasonOutOfStorageTimeExceeded, decoded.ReasonKey)
}

func TestPublishQuarantine_WriteError(t *testing.T) {
	publisher, quarantine, _ := testPublisher()
	quarantine.err = errors.New("broker unavailable")

	event := &models.QuarantineProduct{
		EventID:     "evt-1",
		TriggeredBy: models.TriggeredByIrradiationSystem,
		ReasonKey:   models.ReasonIrradiationIncomplete,
	}

	err := publisher.PublishQuarantine(context.Background(), event)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish quarantine event")
}

func TestPublishProductModified_Success(t *testing.T) {
	publisher, _, modified := testPublisher()

	event := &models.ProductModified{
		EventID:        "evt-2",
		UnitNumber:     "W123456789",
		NewProductCode: "E0001V",
		OriginalCode:   "E0001",
		ExpirationDate: "09/25/2026",
		ExpirationTime: "23:59",
		Location:       "LAB-A",
	}

	err := publisher.PublishProductModified(context.Background(), event)

	require.NoError(t, err)
	require.Len(t, modified.messages, 1)
	assert.Equal(t, []byte("W123456789"), modified.messages[0].Key)

	var decoded models.ProductModified
	require.NoError(t, json.Unmarshal(modified.messages[0].Value, &decoded))
	assert.Equal(t, "E0001V", decoded.NewProductCode)
	assert.Equal(t, "23:59", decoded.ExpirationTime)
}

func TestClose_ClosesBothWriters(t *testing.T) {
	publisher, quarantine, modified := testPublisher()

	require.NoError(t, publisher.Close())
	assert.True(t, quarantine.closed)
	assert.True(t, modified.closed)
}
