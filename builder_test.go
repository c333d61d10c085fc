package stagerun

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderRejectsDuplicateStageName(t *testing.T) {
	b := NewBuilder()
	_, err := b.CreateStageBuilder("physics", 60)
	require.NoError(t, err)

	_, err = b.CreateStageBuilder("physics", 30)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateName)
	var dup *DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "physics", dup.Name)
	// The rejected builder travels back so the caller can rename it.
	require.NotNil(t, dup.Builder)
	assert.Equal(t, uint32(30), dup.Builder.Frequency())
}

func TestBuilderAddStageBuilderReturnsRejectedBuilder(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddStageBuilder(NewStageBuilder("render", 30)))

	rejected := NewStageBuilder("render", 60)
	err := b.AddStageBuilder(rejected)

	require.Error(t, err)
	var dup *DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Same(t, rejected, dup.Builder)

	assert.ErrorIs(t, b.AddStageBuilder(nil), ErrNilStageBuilder)
}

func TestBuilderPreservesRegistrationOrder(t *testing.T) {
	b := NewBuilder()
	for _, name := range []string{"input", "physics", "render"} {
		_, err := b.CreateStageBuilder(name, 60)
		require.NoError(t, err)
	}

	app, err := b.Build()
	require.NoError(t, err)

	var names []string
	for _, stage := range app.Settings().BusyStages() {
		names = append(names, stage.Name())
	}
	assert.Equal(t, []string{"input", "physics", "render"}, names)
}

func TestStageBuilderAppBuilderReturnsParent(t *testing.T) {
	b := NewBuilder()
	sb, err := b.CreateStageBuilder("physics", 60)
	require.NoError(t, err)

	parent, err := sb.AppBuilder()

	require.NoError(t, err)
	assert.Same(t, b, parent)
}

func TestStageBuilderAppBuilderAttachesDetached(t *testing.T) {
	sb := NewStageBuilder("physics", 60)

	b, err := sb.AppBuilder()

	require.NoError(t, err)
	require.NotNil(t, b)
	// The fresh parent already holds the stage; a same-name sibling fails.
	_, err = b.CreateStageBuilder("physics", 30)
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestBuilderConfigFileOverridesFrequencies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stages.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"stages:\n  - name: physics\n    frequency: 120\n  - name: ghost\n    frequency: 1\n",
	), 0o600))

	logger := &testLogger{}
	b := NewBuilder(WithLogger(logger), WithConfigFile(path))
	_, err := b.CreateStageBuilder("physics", 60)
	require.NoError(t, err)

	app, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, uint32(120), app.Settings().BusyStage("physics").Frequency())
	assert.Contains(t, logger.messages("warn"), "config names unknown stage")
}

func TestBuilderSurfacesOptionErrorAtBuild(t *testing.T) {
	b := NewBuilder(WithConfigFile(""))

	app, err := b.Build()

	assert.Nil(t, app)
	assert.ErrorIs(t, err, ErrConfigPathEmpty)
}

func TestBuilderRejectsConsumedStageBuilder(t *testing.T) {
	sb := NewStageBuilder("physics", 60)
	sb.Build()

	b := NewBuilder()
	assert.ErrorIs(t, b.AddStageBuilder(sb), ErrBuilderConsumed)

	b2 := NewBuilder()
	sb2, err := b2.CreateStageBuilder("render", 30)
	require.NoError(t, err)
	sb2.Build()
	_, err = b2.Build()
	assert.ErrorIs(t, err, ErrBuilderConsumed)
}

func TestBuilderBuildFailsOnUnreadableConfig(t *testing.T) {
	b := NewBuilder(WithConfigFile(filepath.Join(t.TempDir(), "missing.yaml")))

	_, err := b.Build()

	require.Error(t, err)
}
