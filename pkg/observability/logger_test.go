package observability

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ormasoftchile/stepfix/pkg/config"
)

func testConfig() config.LoggerConfig {
	return config.NewDefaultConfig().Logger
}

func TestInitialize_Console(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(testConfig(), zapcore.AddSync(&buf))

	GetLogger().Info("rewrite event", zap.String("run_id", "r1"))
	out := buf.String()
	assert.Contains(t, out, "stepfix.")
	assert.Contains(t, out, "rewrite event")
	assert.Contains(t, out, `"run_id": "r1"`)
	assert.Contains(t, out, "\x1b[36mINFO", "info level is cyan")
}

func TestInitialize_JSONAndLevel(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := testConfig()
	cfg.Format = "json"
	cfg.Level = "warn"
	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))

	log := GetLogger()
	log.Info("hidden")
	log.Warn("shown", zap.Int("field", 2))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "stepfix", rec["logger"])
	assert.EqualValues(t, 2, rec["field"])

	buf.Reset()
	SetLevel(zapcore.DebugLevel)
	log.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestInitialize_OnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var first, second bytes.Buffer
	Initialize(testConfig(), zapcore.AddSync(&first))
	Initialize(testConfig(), zapcore.AddSync(&second))

	GetLogger().Info("once")
	assert.Contains(t, first.String(), "once")
	assert.Empty(t, second.String())
}

func TestInitialize_LogFile(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := testConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "stepfix.log")
	var console bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&console))

	GetLogger().Info("to both sinks", zap.String("branch", "Regular"))
	require.NoError(t, Sync())

	f, err := os.Open(cfg.LogFile)
	require.NoError(t, err)
	defer f.Close()

	sc := bufio.NewScanner(f)
	require.True(t, sc.Scan())
	var rec map[string]any
	require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
	assert.Equal(t, "INFO", rec["level"], "file sink is JSON without colors")
	assert.Equal(t, "Regular", rec["branch"])
	assert.Contains(t, console.String(), "to both sinks")
}

func TestGetLogger_Fallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	l := GetLogger()
	require.NotNil(t, l)
	assert.NoError(t, Sync())
}
