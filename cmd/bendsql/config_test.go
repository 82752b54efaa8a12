package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultSettings(t *testing.T) {
	s := defaultSettings()
	assert.Equal(t, OutputTSV, s.OutputFormat)
	assert.Equal(t, QuoteNecessary, s.QuoteStyle)
	assert.Equal(t, 1000, s.MaxDisplayRows)
	assert.True(t, s.MultiLine)
	assert.True(t, s.ReplaceNewline)
	assert.False(t, s.ShowProgress)
	assert.Equal(t, TimeNone, s.Time)
}

func TestSettingsSet(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
		check   func(t *testing.T, s *Settings)
	}{
		{
			name: "prompt", value: "dev>",
			check: func(t *testing.T, s *Settings) { assert.Equal(t, "dev>", s.Prompt) },
		},
		{
			name: "show_progress", value: "true",
			check: func(t *testing.T, s *Settings) { assert.True(t, s.ShowProgress) },
		},
		{
			name: "show_stats", value: "false",
			check: func(t *testing.T, s *Settings) { assert.False(t, s.ShowStats) },
		},
		{
			name: "max_display_rows", value: "40",
			check: func(t *testing.T, s *Settings) { assert.Equal(t, 40, s.MaxDisplayRows) },
		},
		{
			name: "output_format", value: "csv",
			check: func(t *testing.T, s *Settings) { assert.Equal(t, OutputCSV, s.OutputFormat) },
		},
		{
			name: "quote_style", value: "always",
			check: func(t *testing.T, s *Settings) { assert.Equal(t, QuoteAlways, s.QuoteStyle) },
		},
		{
			name: "multi_line", value: "false",
			check: func(t *testing.T, s *Settings) { assert.False(t, s.MultiLine) },
		},
		{
			name: "time", value: "server",
			check: func(t *testing.T, s *Settings) { assert.Equal(t, TimeServer, s.Time) },
		},
		{name: "output_format", value: "xml", wantErr: true},
		{name: "max_display_rows", value: "many", wantErr: true},
		{name: "show_progress", value: "yep", wantErr: true},
		{name: "no_such_setting", value: "1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name+"="+tt.value, func(t *testing.T) {
			s := defaultSettings()
			err := s.Set(tt.name, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestSettingsMerge(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(`
connection:
  host: db.example.com
  port: 443
  args:
    role: reader
settings:
  prompt: "{user}@{database}>"
  max_display_rows: 25
  show_stats: false
`), &cfg))

	assert.Equal(t, "db.example.com", cfg.Connection.Host)
	assert.Equal(t, 443, cfg.Connection.Port)
	assert.Equal(t, "reader", cfg.Connection.Args["role"])

	s := defaultSettings()
	s.ShowStats = true // repl mode default
	require.NoError(t, s.Merge(cfg.Settings))

	assert.Equal(t, "{user}@{database}>", s.Prompt)
	assert.Equal(t, 25, s.MaxDisplayRows)
	assert.False(t, s.ShowStats, "explicit config value overrides the mode default")
	// keys absent from the file keep their defaults
	assert.Equal(t, OutputTSV, s.OutputFormat)
	assert.True(t, s.MultiLine)
}

func TestSettingsMergeRejectsBadEnums(t *testing.T) {
	bad := "pretty"
	s := defaultSettings()
	assert.Error(t, s.Merge(SettingsConfig{OutputFormat: &bad}))
	assert.Error(t, s.Merge(SettingsConfig{QuoteStyle: &bad}))
}
