package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/databendcloud/databend-client/driver"
)

// initLogging routes driver logging into dir/bendsql.log at the given level.
// The returned func detaches the logger and closes the file.
func initLogging(dir, level string) (func(), error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %v", level, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "bendsql.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	logger := zerolog.New(f).With().Timestamp().Logger().Level(lvl)
	driver.SetLogger(logger)
	logger.Info().Str("version", driver.DriverVersion).Msg("bendsql started")
	return func() {
		driver.SetLogger(zerolog.Nop())
		f.Close()
	}, nil
}
