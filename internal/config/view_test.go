package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("view")
	v.SetConfigType("yml")
	v.AddConfigPath(dir)
	return v
}

func TestViewConfigDefaultsWhenFileMissing(t *testing.T) {
	holder, err := loadViewConfig(newTestViper(t.TempDir()), false, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultViewConfig(), holder.Get())
}

func TestViewConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`view:
  windowDays: 30
  interval: Week
  locale: de-DE
  hideCurrentYear: false
  streamRefresh: 2m
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "view.yml"), content, 0o600))

	holder, err := loadViewConfig(newTestViper(dir), false, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 30, cfg.WindowDays)
	assert.Equal(t, "week", cfg.Interval)
	assert.Equal(t, "de-DE", cfg.Locale)
	assert.False(t, cfg.HideCurrentYear)
	assert.Equal(t, 2*time.Minute, cfg.StreamRefresh)
	assert.Equal(t, DefaultViewConfig().StreamHeartbeat, cfg.StreamHeartbeat)
}

func TestViewConfigRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "view.yml"), []byte("view:\n  interval: fortnight\n"), 0o600))

	_, err := loadViewConfig(newTestViper(dir), false, zap.NewNop())
	require.Error(t, err)
}

func TestValidateViewConfig(t *testing.T) {
	cfg := DefaultViewConfig()
	require.NoError(t, validateViewConfig(cfg))

	cfg.WindowDays = 0
	assert.Error(t, validateViewConfig(cfg))

	cfg = DefaultViewConfig()
	cfg.StreamHeartbeat = 0
	assert.Error(t, validateViewConfig(cfg))
}

func TestStaticViewConfigHolder(t *testing.T) {
	cfg := DefaultViewConfig()
	cfg.WindowDays = 14
	assert.Equal(t, 14, NewStaticViewConfigHolder(cfg).Get().WindowDays)
}
