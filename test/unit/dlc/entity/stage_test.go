package entity_test

import (
	"testing"

	"voyago/core-api/internal/modules/dlc/entity"

	"github.com/stretchr/testify/assert"
)

func TestStage_IsTerminal(t *testing.T) {
	assert.True(t, entity.StageDeclined.IsTerminal())
	assert.True(t, entity.StageCancelled.IsTerminal())
	assert.True(t, entity.StageDlcOverrideFinished.IsTerminal())
	assert.True(t, entity.StageDlcOverrideFailure.IsTerminal())
	assert.False(t, entity.StageQueued.IsTerminal())
	assert.False(t, entity.StageReceived.IsTerminal())
}

func TestStage_IsContiguityEligible(t *testing.T) {
	assert.True(t, entity.StagePolicyDeployed.IsContiguityEligible())
	assert.True(t, entity.StageExtendedBy.IsContiguityEligible())
	assert.False(t, entity.StageReceived.IsContiguityEligible())
	assert.False(t, entity.StageDeclined.IsContiguityEligible())
}

func TestStage_IsOverlapExcluded(t *testing.T) {
	assert.True(t, entity.StageCancelled.IsOverlapExcluded())
	assert.True(t, entity.StageDeclined.IsOverlapExcluded())
	assert.True(t, entity.StageDlcOverrideFinished.IsOverlapExcluded())
	assert.False(t, entity.StageQueued.IsOverlapExcluded())
}

func TestStage_IsCancellable(t *testing.T) {
	assert.True(t, entity.StageReceived.IsCancellable())
	assert.True(t, entity.StageQueued.IsCancellable())
	assert.True(t, entity.StagePolicyDeployed.IsCancellable())
	assert.False(t, entity.StageCancelled.IsCancellable())
	assert.False(t, entity.StageDeclined.IsCancellable())
	assert.False(t, entity.StageDlcOverrideFinished.IsCancellable())
}

func TestOverrideValue_Opposite(t *testing.T) {
	assert.Equal(t, entity.OverrideOff, entity.OverrideOn.Opposite())
	assert.Equal(t, entity.OverrideOn, entity.OverrideOff.Opposite())
}

func TestOverrideValue_Valid(t *testing.T) {
	assert.True(t, entity.OverrideOn.Valid())
	assert.True(t, entity.OverrideOff.Valid())
	assert.False(t, entity.OverrideValue("MAYBE").Valid())
}
