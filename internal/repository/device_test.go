package repository

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"biopro-irradiation/internal/models"
)

func setupMockDeviceDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *DeviceRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewDeviceRepository(db, logger)

	return db, mock, repo
}

func TestFindByDeviceID_Success(t *testing.T) {
	db, mock, repo := setupMockDeviceDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"device_id", "location", "category", "status", "created_at", "updated_at",
	}).AddRow("IRR-001", "LAB-A", "IRRADIATOR", "ACTIVE", now, now)

	mock.ExpectQuery(`SELECT`).
		WithArgs("IRR-001").
		WillReturnRows(rows)

	device, err := repo.FindByDeviceID(ctx, "IRR-001")

	require.NoError(t, err)
	assert.NotNil(t, device)
	assert.Equal(t, "IRR-001", device.DeviceID)
	assert.Equal(t, "LAB-A", device.Location)
	assert.Equal(t, models.DeviceCategoryIrradiator, device.Category)
	assert.True(t, device.IsActive())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByDeviceID_NotFound(t *testing.T) {
	db, mock, repo := setupMockDeviceDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectQuery(`SELECT`).
		WithArgs("MISSING").
		WillReturnError(sql.ErrNoRows)

	device, err := repo.FindByDeviceID(ctx, "MISSING")

	require.NoError(t, err)
	assert.Nil(t, device)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveDeviceAtLocation_Success(t *testing.T) {
	db, mock, repo := setupMockDeviceDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"device_id", "location", "category", "status", "created_at", "updated_at",
	}).AddRow("IRR-001", "LAB-A", "IRRADIATOR", "ACTIVE", now, now)

	mock.ExpectQuery(`SELECT`).
		WithArgs("IRR-001", "LAB-A", models.DeviceStatusActive).
		WillReturnRows(rows)

	device, err := repo.FindActiveDeviceAtLocation(ctx, "IRR-001", "LAB-A")

	require.NoError(t, err)
	assert.NotNil(t, device)
	assert.Equal(t, "LAB-A", device.Location)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveDeviceAtLocation_WrongLocation(t *testing.T) {
	db, mock, repo := setupMockDeviceDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectQuery(`SELECT`).
		WithArgs("IRR-001", "LAB-B", models.DeviceStatusActive).
		WillReturnError(sql.ErrNoRows)

	device, err := repo.FindActiveDeviceAtLocation(ctx, "IRR-001", "LAB-B")

	require.NoError(t, err)
	assert.Nil(t, device)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertFromLifecycleEvent_Insert(t *testing.T) {
	db, mock, repo := setupMockDeviceDB(t)
	defer db.Close()

	ctx := context.Background()
	event := &models.DeviceLifecycleEvent{
		DeviceID: "IRR-002",
		Location: "LAB-B",
		Category: "IRRADIATOR",
		Status:   "ACTIVE",
	}

	mock.ExpectExec(`INSERT INTO devices`).
		WithArgs("IRR-002", "LAB-B", "IRRADIATOR", "ACTIVE").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.UpsertFromLifecycleEvent(ctx, event)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertFromLifecycleEvent_Error(t *testing.T) {
	db, mock, repo := setupMockDeviceDB(t)
	defer db.Close()

	ctx := context.Background()
	event := &models.DeviceLifecycleEvent{
		DeviceID: "IRR-002",
		Location: "LAB-B",
		Category: "IRRADIATOR",
		Status:   "ACTIVE",
	}

	mock.ExpectExec(`INSERT INTO devices`).
		WithArgs("IRR-002", "LAB-B", "IRRADIATOR", "ACTIVE").
		WillReturnError(fmt.Errorf("connection refused"))

	err := repo.UpsertFromLifecycleEvent(ctx, event)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upsert device")

	require.NoError(t, mock.ExpectationsWereMet())
}
