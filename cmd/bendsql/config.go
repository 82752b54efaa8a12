package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// OutputFormat selects how query results are written to stdout.
type OutputFormat string

// Output formats.
const (
	OutputTable  OutputFormat = "table"
	OutputCSV    OutputFormat = "csv"
	OutputTSV    OutputFormat = "tsv"
	OutputNDJSON OutputFormat = "ndjson"
	OutputNull   OutputFormat = "null"
)

func parseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputTable, OutputCSV, OutputTSV, OutputNDJSON, OutputNull:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (expected table, csv, tsv, ndjson or null)", s)
}

// QuoteStyle selects when CSV output fields are quoted.
type QuoteStyle string

// Quote styles.
const (
	QuoteAlways     QuoteStyle = "always"
	QuoteNecessary  QuoteStyle = "necessary"
	QuoteNonNumeric QuoteStyle = "nonnumeric"
	QuoteNever      QuoteStyle = "never"
)

func parseQuoteStyle(s string) (QuoteStyle, error) {
	switch QuoteStyle(s) {
	case QuoteAlways, QuoteNecessary, QuoteNonNumeric, QuoteNever:
		return QuoteStyle(s), nil
	}
	return "", fmt.Errorf("unknown quote style %q (expected always, necessary, nonnumeric or never)", s)
}

// TimeOption selects which elapsed time is printed after a script run.
type TimeOption string

// Time options. TimeNone disables the report.
const (
	TimeNone   TimeOption = ""
	TimeLocal  TimeOption = "local"
	TimeServer TimeOption = "server"
)

func parseTimeOption(s string) (TimeOption, error) {
	switch TimeOption(s) {
	case TimeNone, TimeLocal, TimeServer:
		return TimeOption(s), nil
	}
	return "", fmt.Errorf("unknown time option %q (expected local or server)", s)
}

// Settings are the resolved display settings of one session. The zero value
// is not usable - start from defaultSettings.
type Settings struct {
	Prompt         string
	ShowProgress   bool
	ShowStats      bool
	MaxDisplayRows int
	OutputFormat   OutputFormat
	QuoteStyle     QuoteStyle
	MultiLine      bool
	ReplaceNewline bool
	Time           TimeOption
}

func defaultSettings() *Settings {
	return &Settings{
		Prompt:         "bendsql {warehouse}>",
		MaxDisplayRows: 1000,
		OutputFormat:   OutputTSV,
		QuoteStyle:     QuoteNecessary,
		MultiLine:      true,
		ReplaceNewline: true,
	}
}

// Set applies a `.name value` control command typed in the REPL.
func (s *Settings) Set(name, value string) error {
	var err error
	switch name {
	case "prompt":
		s.Prompt = value
	case "show_progress":
		s.ShowProgress, err = strconv.ParseBool(value)
	case "show_stats":
		s.ShowStats, err = strconv.ParseBool(value)
	case "max_display_rows":
		s.MaxDisplayRows, err = strconv.Atoi(value)
	case "output_format":
		s.OutputFormat, err = parseOutputFormat(value)
	case "quote_style":
		s.QuoteStyle, err = parseQuoteStyle(value)
	case "multi_line":
		s.MultiLine, err = strconv.ParseBool(value)
	case "replace_newline":
		s.ReplaceNewline, err = strconv.ParseBool(value)
	case "time":
		s.Time, err = parseTimeOption(value)
	default:
		return fmt.Errorf("unknown command %q", name)
	}
	if err != nil {
		return fmt.Errorf("set %s: %v", name, err)
	}
	return nil
}

// SettingsConfig is the optional settings section of the config file. Pointer
// fields distinguish an absent key from an explicit zero.
type SettingsConfig struct {
	Prompt         *string `yaml:"prompt"`
	ShowProgress   *bool   `yaml:"show_progress"`
	ShowStats      *bool   `yaml:"show_stats"`
	MaxDisplayRows *int    `yaml:"max_display_rows"`
	OutputFormat   *string `yaml:"output_format"`
	QuoteStyle     *string `yaml:"quote_style"`
	MultiLine      *bool   `yaml:"multi_line"`
	ReplaceNewline *bool   `yaml:"replace_newline"`
}

// Merge overlays the config file settings onto s.
func (s *Settings) Merge(c SettingsConfig) error {
	if c.Prompt != nil {
		s.Prompt = *c.Prompt
	}
	if c.ShowProgress != nil {
		s.ShowProgress = *c.ShowProgress
	}
	if c.ShowStats != nil {
		s.ShowStats = *c.ShowStats
	}
	if c.MaxDisplayRows != nil {
		s.MaxDisplayRows = *c.MaxDisplayRows
	}
	if c.OutputFormat != nil {
		format, err := parseOutputFormat(*c.OutputFormat)
		if err != nil {
			return err
		}
		s.OutputFormat = format
	}
	if c.QuoteStyle != nil {
		style, err := parseQuoteStyle(*c.QuoteStyle)
		if err != nil {
			return err
		}
		s.QuoteStyle = style
	}
	if c.MultiLine != nil {
		s.MultiLine = *c.MultiLine
	}
	if c.ReplaceNewline != nil {
		s.ReplaceNewline = *c.ReplaceNewline
	}
	return nil
}

// ConnectionConfig is the connection section of the config file. Values act
// as defaults and are overridden by command line flags.
type ConnectionConfig struct {
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	User     string            `yaml:"user"`
	Database string            `yaml:"database"`
	Args     map[string]string `yaml:"args"`
}

// Config is the content of $HOME/.bendsql/config.yaml.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Settings   SettingsConfig   `yaml:"settings"`
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bendsql"
	}
	return filepath.Join(home, ".bendsql")
}

// loadConfig reads the config file. A missing file yields the built-in
// defaults; a malformed one is reported on stderr and ignored.
func loadConfig() *Config {
	cfg := &Config{
		Connection: ConnectionConfig{
			Host: "127.0.0.1",
			Port: 8000,
			User: "root",
			Args: map[string]string{},
		},
	}
	data, err := os.ReadFile(filepath.Join(configDir(), "config.yaml"))
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid config file: %v\n", err)
	}
	if cfg.Connection.Args == nil {
		cfg.Connection.Args = map[string]string{}
	}
	return cfg
}
