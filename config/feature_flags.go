package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles for the bulletin engine.
// Supports gradual rollout per classroom and time-based activation, so a
// school can pilot new report-card behavior on a few classrooms first.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Classrooms are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	ClassroomID string
	IsAdmin     bool
}

// Predefined feature flag names.
const (
	// === Ranking Features ===
	FeatureRankingCache = "ranking.cache" // Cache classroom ranking tables in Redis

	// === Generation Features ===
	FeatureGenerationLock       = "generation.lock"        // Serialize batch runs per year/term
	FeatureGenerationAutoSubmit = "generation.auto_submit" // Submit drafts right after generation

	// === Bulletin Features ===
	FeatureBulletinAutoComment   = "bulletin.auto_comment"   // Generate default appreciations
	FeatureBulletinCarryComments = "bulletin.carry_comments" // Keep teacher appreciations across recomputes
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features: make(map[string]*Feature),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureRankingCache] = &Feature{
		Name:           FeatureRankingCache,
		Description:    "Cache classroom ranking tables in Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGenerationLock] = &Feature{
		Name:           FeatureGenerationLock,
		Description:    "Serialize batch generation runs per year/term",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGenerationAutoSubmit] = &Feature{
		Name:           FeatureGenerationAutoSubmit,
		Description:    "Submit drafts for validation right after generation",
		Enabled:        false, // Homeroom teachers review drafts first
		RolloutPercent: 0,
	}

	ff.features[FeatureBulletinAutoComment] = &Feature{
		Name:           FeatureBulletinAutoComment,
		Description:    "Generate default appreciations from averages",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureBulletinCarryComments] = &Feature{
		Name:           FeatureBulletinCarryComments,
		Description:    "Keep teacher appreciations across recomputes",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_GENERATION_AUTO_SUBMIT=true
// Example: FEATURE_RANKING_CACHE=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "ranking.cache" -> "FEATURE_RANKING_CACHE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.ClassroomID != "" {
		return ff.isInRollout(ctx.ClassroomID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a classroom is in the rollout percentage.
// Uses consistent hashing so classrooms stay in their bucket.
func (ff *FeatureFlags) isInRollout(classroomID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(classroomID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
