// Bendsql is an interactive terminal and batch runner for Databend.
//
// Interactive use:
//
//	bendsql -h 127.0.0.1 -P 8000 -u root
//
// Batch use:
//
//	echo "select 1;" | bendsql -n
//	bendsql --query="select * from t" -o csv
//	bendsql --query="insert into t values" --data=@books.csv --format=csv
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/databendcloud/databend-client/driver"
)

var (
	flagFlight         bool
	flagTLS            bool
	flagHost           string
	flagPort           int
	flagUser           string
	flagPassword       string
	flagDatabase       string
	flagSet            []string
	flagDSN            string
	flagNonInteractive bool
	flagQuery          string
	flagData           string
	flagFormat         string
	flagFormatOpt      []string
	flagOutput         string
	flagQuoteStyle     string
	flagProgress       bool
	flagStats          bool
	flagTime           string
	flagLogLevel       string
	flagRole           string
)

var rootCmd = &cobra.Command{
	Use:           "bendsql",
	Short:         "Databend native command line tool",
	Version:       driver.DriverVersion,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	// -h is taken by --host, so the help flag is registered without a
	// shorthand before cobra installs its default one.
	f.Bool("help", false, "Print help information")
	f.BoolVar(&flagFlight, "flight", false, "Using flight sql protocol")
	f.BoolVar(&flagTLS, "tls", false, "Enable TLS")
	f.StringVarP(&flagHost, "host", "h", "", "Databend Server host, Default: 127.0.0.1")
	f.IntVarP(&flagPort, "port", "P", 0, "Databend Server port, Default: 8000")
	f.StringVarP(&flagUser, "user", "u", "", "Default: root")
	f.StringVarP(&flagPassword, "password", "p", "", "Password, env: BENDSQL_PASSWORD")
	f.StringVarP(&flagDatabase, "database", "D", "", "Database name")
	f.StringArrayVar(&flagSet, "set", nil, "Settings (KEY=VALUE)")
	f.StringVar(&flagDSN, "dsn", "", "Data source name, env: BENDSQL_DSN")
	f.BoolVarP(&flagNonInteractive, "non-interactive", "n", false, "Force non-interactive mode")
	f.StringVar(&flagQuery, "query", "", "Query to execute")
	f.StringVarP(&flagData, "data", "d", "", "Data to load, @file or @- for stdin")
	f.StringVarP(&flagFormat, "format", "f", "csv", "Data format to load")
	f.StringArrayVar(&flagFormatOpt, "format-opt", nil, "Data format options (KEY=VALUE)")
	f.StringVarP(&flagOutput, "output", "o", "", "Output format (table, csv, tsv, ndjson, null)")
	f.StringVarP(&flagQuoteStyle, "quote-style", "s", "", "Output quote style (always, necessary, nonnumeric, never)")
	f.BoolVar(&flagProgress, "progress", false, "Show progress for query execution in stderr, only works with output format `table` and `null`")
	f.BoolVar(&flagStats, "stats", false, "Show stats after query execution in stderr, only works with non-interactive mode")
	f.StringVar(&flagTime, "time", "", "Only show execution time without results, will implicitly set output format to `null`")
	f.Lookup("time").NoOptDefVal = string(TimeLocal)
	f.StringVarP(&flagLogLevel, "log-level", "l", "info", "Log level")
	f.StringVarP(&flagRole, "role", "r", "", "Downgrade role name")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	if flagPassword == "" && !flags.Changed("password") {
		flagPassword = os.Getenv("BENDSQL_PASSWORD")
	}
	if flagDSN == "" && !flags.Changed("dsn") {
		flagDSN = os.Getenv("BENDSQL_DSN")
	}

	cfg := loadConfig()
	dsn, err := resolveDSN(cfg, flags)
	if err != nil {
		return err
	}

	isRepl := stdinIsTerminal() && !flagNonInteractive && flagQuery == ""

	settings := defaultSettings()
	if isRepl {
		settings.ShowProgress = true
		settings.ShowStats = true
		settings.OutputFormat = OutputTable
	}
	if err := settings.Merge(cfg.Settings); err != nil {
		return err
	}
	if flagOutput != "" {
		if settings.OutputFormat, err = parseOutputFormat(flagOutput); err != nil {
			return err
		}
	}
	if flagQuoteStyle != "" {
		if settings.QuoteStyle, err = parseQuoteStyle(flagQuoteStyle); err != nil {
			return err
		}
	}
	if flagProgress {
		settings.ShowProgress = true
	}
	if flagStats {
		settings.ShowStats = true
	}
	if flagTime != "" {
		if settings.Time, err = parseTimeOption(flagTime); err != nil {
			return err
		}
		settings.OutputFormat = OutputNull
	}

	closeLog, err := initLogging(configDir(), flagLogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	sess, err := newSession(dsn, settings, isRepl)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := context.Background()
	if isRepl {
		sess.handleRepl(ctx)
		return nil
	}

	if flagQuery == "" {
		if flagNonInteractive {
			return errors.New("no query specified")
		}
		return sess.handleReader(ctx, os.Stdin)
	}
	if flagData == "" {
		return sess.handleReader(ctx, strings.NewReader(flagQuery))
	}

	options, err := inputFormatOptions(flagFormat, flagFormatOpt)
	if err != nil {
		return err
	}
	switch {
	case flagData == "@-":
		return sess.streamLoadStdin(ctx, flagQuery, options)
	case strings.HasPrefix(flagData, "@"):
		path := flagData[1:]
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("file not found: %s", path)
		}
		return sess.streamLoadFile(ctx, flagQuery, path, options)
	default:
		return fmt.Errorf("invalid data input: %s", flagData)
	}
}

// resolveDSN returns the DSN to connect with: --dsn (or BENDSQL_DSN) verbatim
// when given, otherwise one composed from the config file overlaid with the
// connection flags.
func resolveDSN(cfg *Config, flags *pflag.FlagSet) (string, error) {
	if flagDSN != "" {
		for _, name := range []string{"host", "port", "user", "password", "database", "role", "set", "tls", "flight"} {
			if flags.Changed(name) {
				fmt.Fprintf(os.Stderr, "warning: --%s is ignored when --dsn is set\n", name)
			}
		}
		return flagDSN, nil
	}
	if flags.Changed("host") {
		cfg.Connection.Host = flagHost
	}
	if flags.Changed("port") {
		cfg.Connection.Port = flagPort
	}
	if flags.Changed("user") {
		cfg.Connection.User = flagUser
	}
	if flagDatabase != "" {
		cfg.Connection.Database = flagDatabase
	}
	for _, kv := range flagSet {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return "", fmt.Errorf("invalid KEY=value: no `=` found in %q", kv)
		}
		cfg.Connection.Args[k] = v
	}
	if flagRole != "" {
		cfg.Connection.Args["role"] = flagRole
	}
	return composeDSN(cfg.Connection, flagPassword, flagTLS, flagFlight), nil
}

func composeDSN(conn ConnectionConfig, password string, tls, flight bool) string {
	scheme := "databend"
	switch {
	case flight:
		scheme = "databend+flight"
	case tls:
		scheme = "databend+https"
	}
	u := &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(conn.Host, strconv.Itoa(conn.Port)),
	}
	if password != "" {
		u.User = url.UserPassword(conn.User, password)
	} else {
		u.User = url.User(conn.User)
	}
	if conn.Database != "" {
		u.Path = "/" + conn.Database
	}
	q := url.Values{}
	q.Set("display_warnings", "1")
	for k, v := range conn.Args {
		q.Set(k, v)
	}
	if tls {
		q.Set("sslmode", "require")
	} else {
		q.Set("sslmode", "disable")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func stdinIsTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// inputFormatOptions builds the file format options for --data loads from
// the input format name and any --format-opt overrides.
func inputFormatOptions(format string, opts []string) (map[string]string, error) {
	options := map[string]string{}
	switch strings.ToLower(format) {
	case "csv":
		options["type"] = "CSV"
		options["record_delimiter"] = "\n"
		options["field_delimiter"] = ","
		options["quote"] = "\""
		options["escape"] = "\""
		options["skip_header"] = "0"
		options["compression"] = "NONE"
	case "tsv":
		options["type"] = "TSV"
		options["record_delimiter"] = "\n"
		options["field_delimiter"] = "\t"
		options["compression"] = "NONE"
	case "ndjson":
		options["type"] = "NDJSON"
		options["compression"] = "NONE"
	case "parquet":
		options["type"] = "Parquet"
	case "xml":
		options["type"] = "XML"
		options["compression"] = "NONE"
		options["row_tag"] = "row"
	default:
		return nil, fmt.Errorf("unknown load format %q (expected csv, tsv, ndjson, parquet or xml)", format)
	}
	for _, kv := range opts {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid KEY=value: no `=` found in %q", kv)
		}
		// undo shell escaping of delimiter characters
		switch v {
		case `\r\n`:
			v = "\r\n"
		case `\r`:
			v = "\r"
		case `\n`:
			v = "\n"
		}
		options[k] = v
	}
	return options, nil
}
