package units

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/core-tools/hsu-compose/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(id string) UnitConfig {
	return UnitConfig{
		ID:          id,
		ComposeFile: "docker-compose.yml",
		ServiceName: id,
	}
}

func TestEffective(t *testing.T) {
	full := ExampleUnit()
	prodOnly := UnitConfig{ID: "api", ComposeFile: "c.yml", ServiceName: "api", ContainerName: "api-container"}

	tests := []struct {
		name          string
		config        UnitConfig
		mode          Mode
		wantService   string
		wantContainer string
		wantProfile   string
	}{
		{"prod uses prod pair", full, ModeProd, "network", "network-container", ""},
		{"dev uses dev pair", full, ModeDev, "network-dev", "network-dev-container", "dev"},
		{"dev without dev pair falls back", prodOnly, ModeDev, "api", "api-container", "dev"},
		{"prod without dev pair", prodOnly, ModeProd, "api", "api-container", ""},
		{
			"dev with only dev service",
			UnitConfig{ID: "x", ServiceName: "x", ContainerName: "x-c", DevServiceName: "x-dev"},
			ModeDev, "x-dev", "x-c", "dev",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			effective := tt.config.Effective(tt.mode)
			assert.Equal(t, tt.wantService, effective.ServiceName)
			assert.Equal(t, tt.wantContainer, effective.ContainerName)
			assert.Equal(t, tt.wantProfile, effective.ComposeProfile)
			assert.Equal(t, tt.mode, effective.Mode)
			assert.Equal(t, tt.config.ProjectName, effective.ProjectName)
		})
	}
}

func TestServiceUnit_EffectiveFollowsMode(t *testing.T) {
	unit := NewServiceUnit(ExampleUnit())

	assert.Equal(t, "network", unit.Effective().ServiceName)

	unit.Runtime().SetMode(ModeDev)
	assert.Equal(t, "network-dev", unit.Effective().ServiceName)

	unit.Runtime().SetMode(ModeProd)
	assert.Equal(t, "network", unit.Effective().ServiceName)
}

func TestDefaultComposePath(t *testing.T) {
	t.Setenv(ComposePathEnv, "")
	assert.Equal(t, DefaultComposeFile, DefaultComposePath())

	t.Setenv(ComposePathEnv, "deploy/compose.gateway.yml")
	assert.Equal(t, "deploy/compose.gateway.yml", DefaultComposePath())

	config := UnitConfig{ID: "x", ServiceName: "x"}
	ApplyDefaults(&config)
	assert.Equal(t, "deploy/compose.gateway.yml", config.ComposeFile)
}

func TestValidateUnitConfig(t *testing.T) {
	tests := []struct {
		name      string
		config    UnitConfig
		shouldErr bool
	}{
		{"example unit", ExampleUnit(), false},
		{"missing id", UnitConfig{ComposeFile: "c.yml", ServiceName: "s"}, true},
		{"id with spaces", UnitConfig{ID: "my unit", ComposeFile: "c.yml", ServiceName: "s"}, true},
		{"missing service", UnitConfig{ID: "x", ComposeFile: "c.yml"}, true},
		{"missing compose file", UnitConfig{ID: "x", ServiceName: "s"}, true},
		{"upper case project", UnitConfig{ID: "x", ComposeFile: "c.yml", ServiceName: "s", ProjectName: "Gateway"}, true},
		{"missing env file is allowed", UnitConfig{ID: "x", ComposeFile: "c.yml", ServiceName: "s", EnvFile: "does-not-exist.env"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUnitConfig(tt.config)
			if tt.shouldErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUnitConfig_MalformedEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "bad.env")
	require.NoError(t, os.WriteFile(envFile, []byte("KEY='unterminated\n"), 0644))

	config := testConfig("x")
	config.EnvFile = envFile

	err := ValidateUnitConfig(config)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestValidateUnitConfigs_DuplicateIDs(t *testing.T) {
	err := ValidateUnitConfigs([]UnitConfig{testConfig("a"), testConfig("b"), testConfig("a")})
	require.Error(t, err)
	assert.True(t, errors.IsConflictError(err.(*errors.ErrorCollection).Errors[0]))

	assert.NoError(t, ValidateUnitConfigs([]UnitConfig{testConfig("a"), testConfig("b")}))
}

func TestRuntime_DefaultsAndObservers(t *testing.T) {
	runtime := NewUnitRuntime()

	assert.Equal(t, StatusUnknown, runtime.Status())
	assert.Equal(t, ModeProd, runtime.Mode())
	_, hasError := runtime.LastError()
	assert.False(t, hasError)

	var snapshots []RuntimeSnapshot
	runtime.Observe(func(snapshot RuntimeSnapshot) {
		snapshots = append(snapshots, snapshot)
	})

	runtime.SetStatus(StatusStarting)
	runtime.Fail("boom")
	runtime.ClearLastError()

	require.Len(t, snapshots, 3)
	assert.Equal(t, StatusStarting, snapshots[0].Status)
	assert.Equal(t, StatusError, snapshots[1].Status)
	assert.Equal(t, "boom", snapshots[1].LastError)
	assert.False(t, snapshots[2].HasError)
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "UP", StatusUp.Text())
	assert.Equal(t, "BUILDING", StatusBuilding.Text())
	assert.Equal(t, "UNKNOWN", Status("weird").Text())
	assert.True(t, StatusRestarting.IsTransitional())
	assert.False(t, StatusDown.IsTransitional())
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("dev")
	require.NoError(t, err)
	assert.Equal(t, ModeDev, mode)

	_, err = ParseMode("staging")
	assert.True(t, errors.IsValidationError(err))
}

func TestServiceUnit_TryBeginOperation(t *testing.T) {
	unit := NewServiceUnit(testConfig("a"))

	release, ok := unit.TryBeginOperation()
	require.True(t, ok)

	_, ok = unit.TryBeginOperation()
	assert.False(t, ok)

	release()
	release, ok = unit.TryBeginOperation()
	require.True(t, ok)
	release()
}

func TestRegistry_SetUnitsSelectsFirst(t *testing.T) {
	registry := NewRegistry()
	assert.Nil(t, registry.Selected())

	units := NewUnits([]UnitConfig{testConfig("a"), testConfig("b")})
	registry.SetUnits(units)
	assert.Same(t, units[0], registry.Selected())

	registry.SetUnits(nil)
	assert.Nil(t, registry.Selected())
	assert.Empty(t, registry.Units())
}

func TestRegistry_SelectRejectsNonMember(t *testing.T) {
	registry := NewRegistry()
	registry.SetUnits(NewUnits([]UnitConfig{testConfig("a")}))
	before := registry.Selected()

	err := registry.Select(NewServiceUnit(testConfig("a")))
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.Same(t, before, registry.Selected())

	assert.True(t, errors.IsValidationError(registry.Select(nil)))
	assert.True(t, errors.IsNotFoundError(registry.SelectByID("zzz")))
}

func TestRegistry_NotifiesOnlyOnChange(t *testing.T) {
	registry := NewRegistry()
	units := NewUnits([]UnitConfig{testConfig("a"), testConfig("b")})

	type change struct{ from, to string }
	var changes []change
	id := func(u *ServiceUnit) string {
		if u == nil {
			return ""
		}
		return u.ID()
	}
	registry.OnSelectionChanged(func(previous, current *ServiceUnit) {
		// the registry must already report the new selection
		assert.Same(t, current, registry.Selected())
		changes = append(changes, change{id(previous), id(current)})
	})

	registry.SetUnits(units)
	require.NoError(t, registry.Select(units[0]))
	require.NoError(t, registry.SelectByID("b"))
	require.NoError(t, registry.Select(units[1]))

	assert.Equal(t, []change{{"", "a"}, {"a", "b"}}, changes)
}

func TestRegistry_ReplaceUnitsKeepsSelection(t *testing.T) {
	registry := NewRegistry()
	registry.SetUnits(NewUnits([]UnitConfig{testConfig("a"), testConfig("b")}))
	require.NoError(t, registry.SelectByID("b"))

	replacement := NewUnits([]UnitConfig{testConfig("c"), testConfig("b")})
	registry.ReplaceUnits(replacement)
	assert.Same(t, replacement[1], registry.Selected())

	registry.ReplaceUnits(NewUnits([]UnitConfig{testConfig("d")}))
	assert.Equal(t, "d", registry.Selected().ID())
}

func TestRegistry_SelectionAlwaysMember(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	registry := NewRegistry()
	pool := NewUnits([]UnitConfig{testConfig("a"), testConfig("b"), testConfig("c"), testConfig("d")})

	for i := 0; i < 500; i++ {
		switch rng.Intn(3) {
		case 0:
			n := rng.Intn(len(pool) + 1)
			registry.SetUnits(pool[:n])
		case 1:
			_ = registry.Select(pool[rng.Intn(len(pool))])
		case 2:
			_ = registry.SelectByID(string(rune('a' + rng.Intn(5))))
		}

		selected := registry.Selected()
		if len(registry.Units()) == 0 {
			assert.Nil(t, selected)
		} else {
			require.NotNil(t, selected)
			assert.True(t, registry.Contains(selected))
		}
	}
}
