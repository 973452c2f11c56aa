package config

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlagDefaults(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureRankingCache, nil))
	assert.True(t, ff.IsEnabled(FeatureGenerationLock, nil))
	assert.True(t, ff.IsEnabled(FeatureBulletinCarryComments, nil))
	assert.False(t, ff.IsEnabled(FeatureGenerationAutoSubmit, nil),
		"auto-submit ships disabled so homeroom teachers review drafts first")
	assert.False(t, ff.IsEnabled("does.not.exist", nil))
}

func TestFeatureFlagEnvOverrides(t *testing.T) {
	t.Setenv("FEATURE_GENERATION_AUTO_SUBMIT", "true")
	t.Setenv("FEATURE_RANKING_CACHE", "false")
	t.Setenv("FEATURE_GENERATION_LOCK", "50")

	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureGenerationAutoSubmit, nil))
	assert.False(t, ff.IsEnabled(FeatureRankingCache, nil))

	lock := ff.GetAllFeatures()[FeatureGenerationLock]
	require.NotNil(t, lock)
	assert.Equal(t, 50, lock.RolloutPercent)
	assert.True(t, lock.Enabled)
}

func TestFeatureFlagRollout(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureRankingCache, 50))

	t.Run("bucketing is consistent per classroom", func(t *testing.T) {
		ctx := &FeatureContext{ClassroomID: "class-6a"}
		first := ff.IsEnabled(FeatureRankingCache, ctx)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, ff.IsEnabled(FeatureRankingCache, ctx))
		}
	})

	t.Run("partial rollout splits classrooms", func(t *testing.T) {
		const classrooms = 200
		enabled := 0
		for i := 0; i < classrooms; i++ {
			id := fmt.Sprintf("classroom-%d", i)
			if ff.IsEnabled(FeatureRankingCache, &FeatureContext{ClassroomID: id}) {
				enabled++
			}
		}
		assert.Greater(t, enabled, 0)
		assert.Less(t, enabled, classrooms)
	})

	t.Run("admins bypass the rollout", func(t *testing.T) {
		assert.True(t, ff.IsEnabled(FeatureRankingCache, &FeatureContext{ClassroomID: "class-6a", IsAdmin: true}))
	})
}

func TestFeatureFlagUpdates(t *testing.T) {
	ff := LoadFeatureFlags()

	require.NoError(t, ff.DisableFeature(FeatureRankingCache))
	assert.False(t, ff.IsEnabled(FeatureRankingCache, nil))

	require.NoError(t, ff.EnableFeature(FeatureRankingCache))
	assert.True(t, ff.IsEnabled(FeatureRankingCache, nil))

	assert.ErrorIs(t, ff.SetRolloutPercent("does.not.exist", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureRankingCache, 150), ErrInvalidRolloutPercent)
}
