package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carfob/carfob-go/pkg/config"
	"github.com/carfob/carfob-go/pkg/entropy"
	"github.com/carfob/carfob-go/pkg/feature"
	"github.com/carfob/carfob-go/pkg/keys"
	"github.com/carfob/carfob-go/pkg/layout"
	"github.com/carfob/carfob-go/pkg/provision"
	"github.com/carfob/carfob-go/pkg/registry"
)

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.SecretsDir = filepath.Join(dir, "secrets")
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.AuditLog = filepath.Join(dir, "audit.plog")
	cfg.Registry = filepath.Join(dir, "registry.db")

	env, err := NewEnv(cfg, nil, entropy.NewDeterministic([]byte("commands"), t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })

	var buf bytes.Buffer
	require.NoError(t, RunSecrets(env, &buf))
	return env
}

func TestRunSecrets(t *testing.T) {
	env := newTestEnv(t)

	for _, name := range []string{"car", "fob", "man"} {
		for _, file := range []string{keys.SecretFile(name), keys.PublicFile(name), name + ".pem"} {
			_, err := os.Stat(filepath.Join(env.Config.SecretsDir, file))
			assert.NoError(t, err, file)
		}
	}
}

func TestRunCarAndInspect(t *testing.T) {
	env := newTestEnv(t)

	unlock := filepath.Join(t.TempDir(), "unlock.txt")
	require.NoError(t, os.WriteFile(unlock, []byte("Car unlocked"), 0644))

	var out bytes.Buffer
	err := RunCar(env, CarOptions{
		CarID:    "0x00000001",
		Out:      "car.eeprom",
		Messages: map[string]string{"MSG_UNLOCK": unlock},
	}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Car ID: 00000001")

	path := filepath.Join(env.Config.OutputDir, "car.eeprom")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, layout.ImageSize)
	assert.Equal(t, []byte{0, 0, 0, 1}, data[0x200:0x204])
	assert.Equal(t, []byte("Car unlocked"), data[0x7C0:0x7C0+12])

	out.Reset()
	require.NoError(t, RunInspect(env, path, InspectOptions{Role: "car"}, &out))
	text := out.String()
	assert.Contains(t, text, "CAR_SECRET")
	assert.Contains(t, text, "<redacted>")
	assert.Contains(t, text, "Car ID:  00000001")

	// Registering the same car twice fails.
	err = RunCar(env, CarOptions{CarID: "1", Out: "car2.eeprom"}, &out)
	assert.ErrorIs(t, err, registry.ErrDuplicateCar)
	_, statErr := os.Stat(filepath.Join(env.Config.OutputDir, "car2.eeprom"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunCarWriteFailureLeavesCarUnregistered(t *testing.T) {
	env := newTestEnv(t)
	var out bytes.Buffer

	// A directory in the way makes the final rename fail.
	blocked := filepath.Join(env.Config.OutputDir, "car.eeprom")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "busy"), 0755))

	err := RunCar(env, CarOptions{CarID: "1", Out: "car.eeprom"}, &out)
	require.Error(t, err)

	car, err := env.Registry.GetCar(1)
	require.NoError(t, err)
	assert.Nil(t, car)

	require.NoError(t, RunCar(env, CarOptions{CarID: "1", Out: "car2.eeprom"}, &out))
	car, err = env.Registry.GetCar(1)
	require.NoError(t, err)
	require.NotNil(t, car)
}

func TestRunCarInvalidID(t *testing.T) {
	env := newTestEnv(t)
	err := RunCar(env, CarOptions{CarID: "xyz", Out: "car.eeprom"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, feature.ErrInvalidCarID)
}

func TestRunFobPairedWithPrompt(t *testing.T) {
	env := newTestEnv(t)

	prompted := false
	var out bytes.Buffer
	err := RunFob(env, FobOptions{
		CarID: "1",
		Out:   "fob.eeprom",
		PromptPIN: func() (string, error) {
			prompted = true
			return "123456", nil
		},
	}, &out)
	require.NoError(t, err)
	assert.True(t, prompted)
	assert.Contains(t, out.String(), "Paired: true")

	img, manifest, err := provision.ReadImage(filepath.Join(env.Config.OutputDir, "fob.eeprom"), layout.RoleFob, 0xFF)
	require.NoError(t, err)
	assert.True(t, manifest.Paired)
	flag, err := layout.DecodeSlot(img, layout.FobMapV1, layout.SlotFobIsPaired)
	require.NoError(t, err)
	assert.Equal(t, provision.PairedFlag, flag)
}

func TestRunFobRequiresPIN(t *testing.T) {
	env := newTestEnv(t)
	err := RunFob(env, FobOptions{CarID: "1", Out: "fob.eeprom"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrPINRequired)
}

func TestFeatureLifecycle(t *testing.T) {
	env := newTestEnv(t)
	var out bytes.Buffer

	require.NoError(t, RunCar(env, CarOptions{CarID: "1", Out: "car.eeprom"}, &out))
	require.NoError(t, RunFob(env, FobOptions{CarID: "1", PIN: "1234", Out: "fob.eeprom"}, &out))
	require.NoError(t, RunFeature(env, FeatureOptions{CarID: "1", Slot: 2, Out: "feat2.bin"}, &out))

	pkgPath := filepath.Join(env.Config.OutputDir, "feat2.bin")
	data, err := os.ReadFile(pkgPath)
	require.NoError(t, err)
	assert.Len(t, data, feature.PackageSize)

	err = RunEnable(env, EnableOptions{
		Image: filepath.Join(env.Config.OutputDir, "fob.eeprom"),
		Token: pkgPath,
		Out:   "fob2.eeprom",
	}, &out)
	require.NoError(t, err)

	out.Reset()
	err = RunInspect(env, filepath.Join(env.Config.OutputDir, "fob2.eeprom"), InspectOptions{Role: "fob", JSON: true}, &out)
	require.NoError(t, err)

	var rep provision.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	assert.True(t, rep.Paired)
	require.Len(t, rep.Features, 1)
	assert.Equal(t, feature.Slot2, rep.Features[0].Slot)
	require.NotNil(t, rep.Features[0].Valid)
	assert.True(t, *rep.Features[0].Valid)

	// The same package also installs at fob build time.
	require.NoError(t, RunFob(env, FobOptions{CarID: "1", PIN: "1234", Out: "fob3.eeprom", Tokens: []string{pkgPath}}, &out))

	// A package for another car is refused.
	require.NoError(t, RunCar(env, CarOptions{CarID: "2", Out: "car2.eeprom"}, &out))
	require.NoError(t, RunFeature(env, FeatureOptions{CarID: "2", Slot: 1, Out: "other.bin"}, &out))
	err = RunFob(env, FobOptions{
		CarID:  "1",
		PIN:    "1234",
		Out:    "fob4.eeprom",
		Tokens: []string{filepath.Join(env.Config.OutputDir, "other.bin")},
	}, &out)
	assert.ErrorIs(t, err, provision.ErrTokenRejected)
}

func TestRunFeatureRequiresRegisteredCar(t *testing.T) {
	env := newTestEnv(t)
	err := RunFeature(env, FeatureOptions{CarID: "99", Slot: 1, Out: "f.bin"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, registry.ErrCarNotFound)
}

func TestRunFeatureWriteFailureKeepsActiveToken(t *testing.T) {
	env := newTestEnv(t)
	var out bytes.Buffer

	require.NoError(t, RunCar(env, CarOptions{CarID: "1", Out: "car.eeprom"}, &out))
	require.NoError(t, RunFeature(env, FeatureOptions{CarID: "1", Slot: 1, Out: "feat1.bin"}, &out))

	delivered, err := readPackage(filepath.Join(env.Config.OutputDir, "feat1.bin"))
	require.NoError(t, err)

	blocked := filepath.Join(env.Config.OutputDir, "feat1-again.bin")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "busy"), 0755))

	err = RunFeature(env, FeatureOptions{CarID: "1", Slot: 1, Out: "feat1-again.bin"}, &out)
	require.Error(t, err)

	active, err := env.Registry.ActiveToken(1, feature.Slot1)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, delivered.Token.Nonce, active.Nonce)

	tokens, err := env.Registry.ListTokens(1)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}

func TestAuditLogView(t *testing.T) {
	env := newTestEnv(t)
	var out bytes.Buffer
	require.NoError(t, RunCar(env, CarOptions{CarID: "abc", Out: "car.eeprom"}, &out))
	require.NoError(t, env.Close())

	out.Reset()
	require.NoError(t, RunView(env.Config.AuditLog, ViewOptions{Category: "image"}, &out))
	text := out.String()
	assert.Equal(t, 1, strings.Count(text, "IMAGE"))
	assert.Contains(t, text, "Car ID: 00000abc")
	assert.Contains(t, text, "SHA256: ")

	out.Reset()
	require.NoError(t, RunView(env.Config.AuditLog, ViewOptions{}, &out))
	assert.Contains(t, out.String(), "KEY")

	err := RunView(env.Config.AuditLog, ViewOptions{Category: "bogus"}, &out)
	assert.Error(t, err)
}
