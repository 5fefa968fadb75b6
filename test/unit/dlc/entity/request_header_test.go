package entity_test

import (
	"testing"
	"time"

	"voyago/core-api/internal/modules/dlc/entity"

	"github.com/stretchr/testify/assert"
)

func validHeader() *entity.RequestHeader {
	start := time.Now().Add(time.Minute)
	return &entity.RequestHeader{
		CorrelationID: "meter-1-20260101T000000Z-uuid",
		Site:          "site-1",
		MeterSerial:   "meter-1",
		OverrideValue: entity.OverrideOn,
		RequestStart:  start,
		RequestEnd:    start.Add(30 * time.Minute),
	}
}

func TestRequestHeader_TableName(t *testing.T) {
	assert.Equal(t, "dlc_request_headers", entity.RequestHeader{}.TableName())
}

func TestRequestHeader_Validate_Success(t *testing.T) {
	h := validHeader()
	assert.NoError(t, h.Validate())
}

func TestRequestHeader_Validate_InvalidOverrideValue(t *testing.T) {
	h := validHeader()
	h.OverrideValue = "SIDEWAYS"
	err := h.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "override_value")
}

func TestRequestHeader_Validate_EndNotAfterStart(t *testing.T) {
	h := validHeader()
	h.RequestEnd = h.RequestStart
	err := h.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "request_end")
}

func TestRequestHeader_SyncDerived(t *testing.T) {
	h := validHeader()
	h.SyncDerived()
	assert.Equal(t, "site-1#meter-1", h.SiteMeter)
}

func TestRequestHeader_IsBeingEnforced(t *testing.T) {
	h := validHeader()
	assert.False(t, h.IsBeingEnforced(h.RequestStart.Add(-time.Second)))
	assert.True(t, h.IsBeingEnforced(h.RequestStart))
	assert.True(t, h.IsBeingEnforced(h.RequestStart.Add(time.Minute)))
	assert.False(t, h.IsBeingEnforced(h.RequestEnd))
}
