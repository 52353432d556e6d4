package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"biopro-irradiation/internal/evaluator"
	"biopro-irradiation/internal/models"
)

type fakeBatchContext struct {
	batch *models.Batch
	item  *models.BatchItem
	err   error
}

func (f *fakeBatchContext) FindLatestBatchWithItem(ctx context.Context, unitNumber, productCode string) (*models.Batch, error) {
	return f.batch, f.err
}

func (f *fakeBatchContext) FindBatchItem(ctx context.Context, batchID int64, unitNumber, productCode string) (*models.BatchItem, error) {
	return f.item, nil
}

type fakeLedger struct {
	record      *models.StorageEventRecord
	markResult  bool
	markErr     error
	markCalls   int
	lastBatchID int64
}

func (f *fakeLedger) FindRecord(ctx context.Context, unitNumber, productCode, deviceUse string, batchID int64) (*models.StorageEventRecord, error) {
	return f.record, nil
}

func (f *fakeLedger) MarkProcessed(ctx context.Context, unitNumber, productCode, deviceUse string, batchID int64, storageTime time.Time) (bool, error) {
	f.markCalls++
	f.lastBatchID = batchID
	return f.markResult, f.markErr
}

type fakeRule struct {
	result *evaluator.OutOfStorageResult
	err    error
}

func (f *fakeRule) Evaluate(ctx context.Context, batchStartTime, storageTime time.Time, productFamily string) (*evaluator.OutOfStorageResult, error) {
	return f.result, f.err
}

type fakeQuarantinePublisher struct {
	published []*models.QuarantineProduct
	err       error
}

func (f *fakeQuarantinePublisher) PublishQuarantine(ctx context.Context, event *models.QuarantineProduct) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, event)
	return nil
}

func closedBatch(id int64, startTime time.Time) *models.Batch {
	endTime := startTime.Add(time.Hour)
	return &models.Batch{ID: id, DeviceID: "IRR-001", StartTime: startTime, EndTime: &endTime}
}

func storedEvent(storageTime time.Time) *models.ProductStoredEvent {
	return &models.ProductStoredEvent{
		UnitNumber:  "W123456789",
		ProductCode: "E0001",
		DeviceUse:   "STORAGE",
		StorageTime: storageTime,
		PerformedBy: "operator1",
	}
}

func TestHandleProductStored_ExceededTriggersQuarantine(t *testing.T) {
	start := time.Now().Add(-2 * time.Hour)
	batches := &fakeBatchContext{
		batch: closedBatch(42, start),
		item:  &models.BatchItem{BatchID: 42, UnitNumber: "W123456789", ProductCode: "E0001", ProductFamily: "RED_BLOOD_CELLS"},
	}
	ledger := &fakeLedger{markResult: true}
	rule := &fakeRule{result: &evaluator.OutOfStorageResult{Exceeded: true, Elapsed: 45 * time.Minute, Threshold: 30 * time.Minute}}
	publisher := &fakeQuarantinePublisher{}
	svc := NewProductStoredService(batches, ledger, rule, publisher, zap.NewNop())

	err := svc.HandleProductStored(context.Background(), storedEvent(start.Add(105*time.Minute)))

	require.NoError(t, err)
	require.Len(t, publisher.published, 1)
	event := publisher.published[0]
	assert.Equal(t, models.TriggeredByIrradiationSystem, event.TriggeredBy)
	assert.Equal(t, models.ReasonOutOfStorageTimeExceeded, event.ReasonKey)
	assert.Equal(t, "operator1", event.PerformedBy)
	require.Len(t, event.Products, 1)
	assert.Equal(t, "W123456789", event.Products[0].UnitNumber)
	assert.NotEmpty(t, event.EventID)

	assert.Equal(t, 1, ledger.markCalls)
	assert.Equal(t, int64(42), ledger.lastBatchID)
}

func TestHandleProductStored_CompliantStillMarked(t *testing.T) {
	start := time.Now().Add(-time.Hour)
	batches := &fakeBatchContext{
		batch: closedBatch(42, start),
		item:  &models.BatchItem{BatchID: 42, ProductFamily: "RED_BLOOD_CELLS"},
	}
	ledger := &fakeLedger{markResult: true}
	rule := &fakeRule{result: &evaluator.OutOfStorageResult{Exceeded: false}}
	publisher := &fakeQuarantinePublisher{}
	svc := NewProductStoredService(batches, ledger, rule, publisher, zap.NewNop())

	err := svc.HandleProductStored(context.Background(), storedEvent(start.Add(10*time.Minute)))

	require.NoError(t, err)
	assert.Empty(t, publisher.published)
	assert.Equal(t, 1, ledger.markCalls)
}

func TestHandleProductStored_NoBatchContextIsNoOp(t *testing.T) {
	ledger := &fakeLedger{}
	publisher := &fakeQuarantinePublisher{}
	svc := NewProductStoredService(&fakeBatchContext{}, ledger, &fakeRule{}, publisher, zap.NewNop())

	err := svc.HandleProductStored(context.Background(), storedEvent(time.Now()))

	require.NoError(t, err)
	assert.Empty(t, publisher.published)
	assert.Zero(t, ledger.markCalls)
}

func TestHandleProductStored_OpenBatchIsNoOpWithoutMark(t *testing.T) {
	batches := &fakeBatchContext{
		batch: &models.Batch{ID: 42, DeviceID: "IRR-001", StartTime: time.Now().Add(-time.Hour)},
	}
	ledger := &fakeLedger{}
	publisher := &fakeQuarantinePublisher{}
	svc := NewProductStoredService(batches, ledger, &fakeRule{}, publisher, zap.NewNop())

	err := svc.HandleProductStored(context.Background(), storedEvent(time.Now()))

	require.NoError(t, err)
	assert.Empty(t, publisher.published)
	assert.Zero(t, ledger.markCalls)
}

func TestHandleProductStored_DuplicateDeliverySkipped(t *testing.T) {
	start := time.Now().Add(-2 * time.Hour)
	batches := &fakeBatchContext{batch: closedBatch(42, start)}
	ledger := &fakeLedger{
		record: &models.StorageEventRecord{Processed: true, BatchID: 42},
	}
	publisher := &fakeQuarantinePublisher{}
	svc := NewProductStoredService(batches, ledger, &fakeRule{}, publisher, zap.NewNop())

	err := svc.HandleProductStored(context.Background(), storedEvent(start.Add(90*time.Minute)))

	require.NoError(t, err)
	assert.Empty(t, publisher.published)
	assert.Zero(t, ledger.markCalls)
}

func TestHandleProductStored_PublishFailureLeavesUnmarked(t *testing.T) {
	start := time.Now().Add(-2 * time.Hour)
	batches := &fakeBatchContext{
		batch: closedBatch(42, start),
		item:  &models.BatchItem{BatchID: 42, ProductFamily: "RED_BLOOD_CELLS"},
	}
	ledger := &fakeLedger{markResult: true}
	rule := &fakeRule{result: &evaluator.OutOfStorageResult{Exceeded: true}}
	publisher := &fakeQuarantinePublisher{err: errors.New("broker unavailable")}
	svc := NewProductStoredService(batches, ledger, rule, publisher, zap.NewNop())

	err := svc.HandleProductStored(context.Background(), storedEvent(start.Add(90*time.Minute)))

	// 发布失败向上传播且不标记台账，等待重投递
	assert.Error(t, err)
	assert.Zero(t, ledger.markCalls)
}

func TestHandleProductStored_ConcurrentLoserDoesNotDoubleTrigger(t *testing.T) {
	start := time.Now().Add(-2 * time.Hour)
	batches := &fakeBatchContext{
		batch: closedBatch(42, start),
		item:  &models.BatchItem{BatchID: 42, ProductFamily: "RED_BLOOD_CELLS"},
	}
	// 条件更新未命中：另一个投递已经抢先标记
	ledger := &fakeLedger{markResult: false}
	rule := &fakeRule{result: &evaluator.OutOfStorageResult{Exceeded: false}}
	svc := NewProductStoredService(batches, ledger, rule, &fakeQuarantinePublisher{}, zap.NewNop())

	err := svc.HandleProductStored(context.Background(), storedEvent(start.Add(90*time.Minute)))

	require.NoError(t, err)
	assert.Equal(t, 1, ledger.markCalls)
}

func TestHandleProductStored_MissingBatchItemIsError(t *testing.T) {
	start := time.Now().Add(-2 * time.Hour)
	batches := &fakeBatchContext{batch: closedBatch(42, start)}
	svc := NewProductStoredService(batches, &fakeLedger{}, &fakeRule{}, &fakeQuarantinePublisher{}, zap.NewNop())

	err := svc.HandleProductStored(context.Background(), storedEvent(start.Add(90*time.Minute)))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch item not found")
}

func TestHandleProductStored_RuleErrorPropagates(t *testing.T) {
	start := time.Now().Add(-2 * time.Hour)
	batches := &fakeBatchContext{
		batch: closedBatch(42, start),
		item:  &models.BatchItem{BatchID: 42, ProductFamily: "RED_BLOOD_CELLS"},
	}
	ledger := &fakeLedger{}
	rule := &fakeRule{err: errors.New("threshold not configured")}
	svc := NewProductStoredService(batches, ledger, rule, &fakeQuarantinePublisher{}, zap.NewNop())

	err := svc.HandleProductStored(context.Background(), storedEvent(start.Add(90*time.Minute)))

	assert.Error(t, err)
	assert.Zero(t, ledger.markCalls)
}
