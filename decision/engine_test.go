package decision

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/qbthrottle/sampler"
	"github.com/s0up4200/qbthrottle/schedule"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)

// stateProfile builds a profile whose outcome is driven entirely by the
// observation's signal, so tests can flip rules at will.
func stateProfile(t *testing.T, emergency bool) *schedule.Profile {
	t.Helper()

	profile, err := schedule.NewProfile([]schedule.RuleSpec{
		{Name: "throttled", State: "busy", UploadKiB: 100, DownloadKiB: 200, Emergency: emergency},
		{Name: "loose", State: "loose", UploadKiB: 5000, DownloadKiB: 5000, Emergency: emergency},
	}, schedule.Targets{})
	require.NoError(t, err)
	return profile
}

func obs(offset time.Duration, signal string) sampler.Observation {
	return sampler.Observation{At: baseTime.Add(offset), Signal: signal}
}

func TestDecideFirstTickAppliesImmediately(t *testing.T) {
	engine := NewEngine(10*time.Minute, zerolog.Nop())
	profile := stateProfile(t, false)

	dec := engine.Decide(profile, obs(0, "busy"))
	assert.True(t, dec.Changed)
	assert.Equal(t, "throttled", dec.Rule)
	assert.Equal(t, schedule.Targets{UploadKiB: 100, DownloadKiB: 200}, dec.Targets)
}

func TestDecideUnchangedTargetsAreNoOp(t *testing.T) {
	engine := NewEngine(10*time.Minute, zerolog.Nop())
	profile := stateProfile(t, false)

	engine.Decide(profile, obs(0, "busy"))
	dec := engine.Decide(profile, obs(time.Second, "busy"))

	assert.False(t, dec.Changed)
	assert.Equal(t, "throttled", dec.Rule)
}

func TestDecideHoldsDuringDwellWindow(t *testing.T) {
	engine := NewEngine(10*time.Minute, zerolog.Nop())
	profile := stateProfile(t, false)

	engine.Decide(profile, obs(0, "busy"))

	// Flipping faster than the dwell keeps the committed targets.
	dec := engine.Decide(profile, obs(time.Minute, ""))
	assert.False(t, dec.Changed)
	assert.Equal(t, "throttled", dec.Rule)

	dec = engine.Decide(profile, obs(2*time.Minute, "busy"))
	assert.False(t, dec.Changed)

	// Once the dwell has passed, the change commits.
	dec = engine.Decide(profile, obs(11*time.Minute, ""))
	assert.True(t, dec.Changed)
	assert.Equal(t, "default", dec.Rule)
}

func TestDecideFlappingCommitsOncePerDwellWindow(t *testing.T) {
	engine := NewEngine(10*time.Minute, zerolog.Nop())
	profile := stateProfile(t, false)

	engine.Decide(profile, obs(0, "busy"))

	var changes int
	signals := []string{"", "busy", "", "busy", "", "busy", ""}
	for i, signal := range signals {
		dec := engine.Decide(profile, obs(time.Duration(i+1)*time.Minute, signal))
		if dec.Changed {
			changes++
		}
	}

	assert.Zero(t, changes, "no change should commit inside one dwell window")
}

func TestDecideEmergencyTighteningBypassesDwell(t *testing.T) {
	engine := NewEngine(10*time.Minute, zerolog.Nop())
	profile := stateProfile(t, true)

	engine.Decide(profile, obs(0, "loose"))

	// Tightening from an emergency rule commits straight away.
	dec := engine.Decide(profile, obs(time.Minute, "busy"))
	assert.True(t, dec.Changed)
	assert.Equal(t, "throttled", dec.Rule)

	// Loosening never bypasses the dwell, emergency rule or not.
	dec = engine.Decide(profile, obs(2*time.Minute, "loose"))
	assert.False(t, dec.Changed)
	assert.Equal(t, "throttled", dec.Rule)
}

func TestDecideZeroDwellDisablesHysteresis(t *testing.T) {
	engine := NewEngine(0, zerolog.Nop())
	profile := stateProfile(t, false)

	engine.Decide(profile, obs(0, "busy"))
	dec := engine.Decide(profile, obs(time.Second, ""))
	assert.True(t, dec.Changed)
	assert.Equal(t, "default", dec.Rule)
}

func TestEngineStateCopy(t *testing.T) {
	engine := NewEngine(time.Minute, zerolog.Nop())
	assert.Nil(t, engine.State())

	profile := stateProfile(t, false)
	engine.Decide(profile, obs(0, "busy"))

	state := engine.State()
	require.NotNil(t, state)
	assert.Equal(t, "throttled", state.Rule)

	// Mutating the copy must not leak into the engine.
	state.Rule = "mutated"
	assert.Equal(t, "throttled", engine.State().Rule)
}
