package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/facevec"
	"github.com/hupe1980/facevec/attendance"
	"github.com/hupe1980/facevec/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:     filepath.Join(t.TempDir(), "ml_models"),
		Dimension:   3,
		Compression: "lz4",
		LogLevel:    "error",
		LogFormat:   "text",
		Threshold:   0.6,
		Backend:     config.BackendConfig{Type: config.BackendLocal},
	}
}

func writeVector(t *testing.T, v []float32) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "vector.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	require.NoError(t, cfg.Validate())

	var out bytes.Buffer
	require.NoError(t, run(ctx, cfg, []string{"add", "7", writeVector(t, []float32{1, 0, 0})}, &out))
	require.NoError(t, run(ctx, cfg, []string{"add", "8", writeVector(t, []float32{0, 1, 0})}, &out))

	out.Reset()
	require.NoError(t, run(ctx, cfg, []string{"search", writeVector(t, []float32{1, 0.1, 0}), "2"}, &out))
	var matches []facevec.Match
	require.NoError(t, json.Unmarshal(out.Bytes(), &matches))
	require.Len(t, matches, 2)
	assert.Equal(t, facevec.UserID(7), matches[0].UserID)

	out.Reset()
	require.NoError(t, run(ctx, cfg, []string{"delete", "7"}, &out))
	assert.Contains(t, out.String(), `"removed": 1`)

	out.Reset()
	require.NoError(t, run(ctx, cfg, []string{"stats"}, &out))
	var stats facevec.Stats
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
	assert.Equal(t, 1, stats.Len)
	assert.Equal(t, 3, stats.Dimension)

	require.NoError(t, run(ctx, cfg, []string{"persist"}, &out))
}

func TestRun_Verify(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	var out bytes.Buffer
	require.NoError(t, run(ctx, cfg, []string{"add", "7", writeVector(t, []float32{1, 0, 0})}, &out))
	require.NoError(t, run(ctx, cfg, []string{"add", "8", writeVector(t, []float32{0, 1, 0})}, &out))

	// Distance 0.5 to user 7: inside 0.6, outside 0.4.
	face := writeVector(t, []float32{0.5, 0, 0.5})

	out.Reset()
	require.NoError(t, run(ctx, cfg, []string{"verify", "7", face}, &out))
	var v attendance.Verification
	require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	assert.Equal(t, facevec.UserID(7), v.UserID)
	assert.InDelta(t, 0.5, v.Distance, 1e-6)

	err := run(ctx, cfg, []string{"verify", "8", face}, &bytes.Buffer{})
	assert.ErrorIs(t, err, attendance.ErrIdentityMismatch)

	cfg.Threshold = 0.4
	err = run(ctx, cfg, []string{"verify", "7", face}, &bytes.Buffer{})
	assert.ErrorIs(t, err, attendance.ErrDistanceTooLarge)

	var ve *attendance.VerificationError
	require.ErrorAs(t, err, &ve)
	assert.InDelta(t, 0.4, ve.Threshold, 1e-6)
}

func TestRun_Usage(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	for _, args := range [][]string{
		nil,
		{"frobnicate"},
		{"stats", "extra"},
		{"delete"},
		{"search"},
		{"verify", "7"},
	} {
		assert.ErrorIs(t, run(ctx, cfg, args, &bytes.Buffer{}), errUsage, "%v", args)
	}

	assert.Error(t, run(ctx, cfg, []string{"delete", "seven"}, &bytes.Buffer{}))
	assert.Error(t, run(ctx, cfg, []string{"search", filepath.Join(t.TempDir(), "missing.json")}, &bytes.Buffer{}))
}
