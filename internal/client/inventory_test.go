package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(serverURL string) *InventoryClient {
	return NewInventoryClient(serverURL, 5*time.Second, zap.NewNop())
}

func TestGetInventoryByUnitNumber_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inventories/W123456789", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"inventories": [
				{"unit_number": "W123456789", "product_code": "E0001", "location": "LAB-A", "status": "AVAILABLE", "product_family": "RED_BLOOD_CELLS"},
				{"unit_number": "W123456789", "product_code": "E0002", "location": "LAB-B", "status": "SHIPPED"}
			]
		}`))
	}))
	defer server.Close()

	records, err := newTestClient(server.URL).GetInventoryByUnitNumber(context.Background(), "W123456789")

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "E0001", records[0].ProductCode)
	assert.Equal(t, "RED_BLOOD_CELLS", records[0].ProductFamily)
	assert.Equal(t, "SHIPPED", records[1].Status)
}

func TestGetInventoryByUnitNumber_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	records, err := newTestClient(server.URL).GetInventoryByUnitNumber(context.Background(), "W123456789")

	assert.Error(t, err)
	assert.Nil(t, records)
	assert.Contains(t, err.Error(), "status 500")
}

func TestGetInventoryByUnitNumberAndProductCode_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inventories/W123456789/E0001", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"unit_number": "W123456789", "product_code": "E0001", "location": "LAB-A", "status": "AVAILABLE"}`))
	}))
	defer server.Close()

	record, err := newTestClient(server.URL).GetInventoryByUnitNumberAndProductCode(context.Background(), "W123456789", "E0001")

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "AVAILABLE", record.Status)
}

func TestGetInventoryByUnitNumberAndProductCode_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	record, err := newTestClient(server.URL).GetInventoryByUnitNumberAndProductCode(context.Background(), "W123456789", "E9999")

	require.NoError(t, err)
	assert.Nil(t, record)
}
