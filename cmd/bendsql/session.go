package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/databendcloud/databend-client/driver"
	"github.com/databendcloud/databend-client/sqlscript"
)

// Session drives one connection through interactive or scripted input. It
// accumulates lines into complete statements, dispatches them by kind and
// reconnects once when the server reports an expired authentication.
type Session struct {
	dsn      string
	conn     driver.Connection
	settings *Settings
	isRepl   bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// pending holds raw input that does not yet form a complete statement.
	pending string
	history *os.File
}

func newSession(dsn string, settings *Settings, isRepl bool) (*Session, error) {
	conn, err := driver.NewConnection(dsn)
	if err != nil {
		return nil, err
	}
	s := &Session{
		dsn:      dsn,
		conn:     conn,
		settings: settings,
		isRepl:   isRepl,
		in:       os.Stdin,
		out:      os.Stdout,
		errOut:   os.Stderr,
	}
	if isRepl {
		fmt.Fprintf(s.out, "Welcome to BendSQL %s.\n", driver.DriverVersion)
		info := conn.Info()
		fmt.Fprintf(s.out, "Connecting to %s:%d as user %s.\n", info.Host, info.Port, info.User)
		version, err := conn.Version(context.Background())
		if err != nil {
			conn.Close()
			return nil, err
		}
		fmt.Fprintf(s.out, "Connected to %s\n\n", version)
		s.history, _ = os.OpenFile(historyPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	}
	return s, nil
}

func (s *Session) Close() error {
	if s.history != nil {
		s.history.Close()
	}
	return s.conn.Close()
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bendsql_history"
	}
	return filepath.Join(home, ".bendsql_history")
}

func (s *Session) addHistory(stmt string) {
	if s.history != nil {
		s.history.WriteString(stmt + "\n")
	}
}

// prompt renders the configured prompt template, or the continuation prompt
// while a statement is incomplete.
func (s *Session) prompt() string {
	if strings.TrimSpace(s.pending) != "" {
		return "> "
	}
	info := s.conn.Info()
	p := s.settings.Prompt
	p = strings.ReplaceAll(p, "{host}", info.Host)
	p = strings.ReplaceAll(p, "{port}", strconv.Itoa(info.Port))
	p = strings.ReplaceAll(p, "{user}", info.User)
	database := info.Database
	if database == "" {
		database = "default"
	}
	p = strings.ReplaceAll(p, "{database}", database)
	if info.Warehouse != "" {
		p = strings.ReplaceAll(p, "{warehouse}", "("+info.Warehouse+")")
	} else {
		p = strings.ReplaceAll(p, "{warehouse}", fmt.Sprintf("%s:%d", info.Host, info.Port))
	}
	return strings.TrimRight(p, " ") + " "
}

// appendLine feeds one input line into the statement buffer and returns the
// statements completed by it. Control commands, exit/quit and PUT are
// dispatched as whole lines without waiting for a separator.
func (s *Session) appendLine(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}
	if strings.TrimSpace(s.pending) == "" {
		if strings.HasPrefix(trimmed, ".") || trimmed == "exit" || trimmed == "quit" ||
			strings.HasPrefix(strings.ToUpper(trimmed), "PUT") {
			return []string{trimmed}
		}
	}
	if !s.settings.MultiLine {
		if strings.HasPrefix(trimmed, "--") {
			return nil
		}
		return []string{trimmed}
	}
	stmts, rest := sqlscript.Statements(s.pending + line + "\n")
	if strings.TrimSpace(rest) == "" {
		rest = ""
	}
	s.pending = rest
	return stmts
}

// flushPending drains the statement buffer at end of input, discarding
// comment-only content.
func (s *Session) flushPending() []string {
	pending := s.pending
	s.pending = ""
	sc := bufio.NewScanner(strings.NewReader(pending))
	sc.Split(sqlscript.Scan)
	var stmts []string
	for sc.Scan() {
		if stmt := strings.TrimSpace(sc.Text()); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// handleQuery executes one complete statement. quit reports that the REPL
// should terminate.
func (s *Session) handleQuery(ctx context.Context, query string) (stats *driver.ServerStats, quit bool, err error) {
	query = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	if query == "" {
		return &driver.ServerStats{}, false, nil
	}
	if s.isRepl && (query == "exit" || query == "quit") {
		return nil, true, nil
	}
	if s.isRepl && strings.HasPrefix(query, ".") {
		fields := strings.Fields(strings.TrimPrefix(query, "."))
		if len(fields) != 2 {
			return nil, false, errors.New("control command error, must be syntax of `.cmd_name cmd_value`")
		}
		if err := s.settings.Set(fields[0], fields[1]); err != nil {
			return nil, false, err
		}
		return &driver.ServerStats{}, false, nil
	}

	start := time.Now()
	kind := sqlscript.KindOf(query)

	if kind == sqlscript.KindUpdate && !s.isRepl {
		if _, err := s.conn.Exec(ctx, query); err != nil {
			return nil, false, err
		}
		return &driver.ServerStats{}, false, nil
	}

	switch kind {
	case sqlscript.KindPut, sqlscript.KindGet:
		args := strings.Fields(query)
		if len(args) != 3 {
			fmt.Fprintf(s.errOut, "%s args are invalid, must be 2 arguments\n", strings.ToLower(args[0]))
			return &driver.ServerStats{}, false, nil
		}
		var n int
		verb := "uploaded"
		if kind == sqlscript.KindPut {
			n, err = s.conn.PutFiles(ctx, args[1], args[2])
		} else {
			verb = "downloaded"
			n, err = s.conn.GetFiles(ctx, args[1], args[2])
		}
		if err != nil {
			return nil, false, err
		}
		fmt.Fprintf(s.out, "%d files %s in (%.3f sec)\n", n, verb, time.Since(start).Seconds())
		return &driver.ServerStats{}, false, nil
	}

	it, err := s.conn.QueryIterExt(ctx, query)
	if err != nil {
		return nil, false, err
	}
	d := newDisplayer(s.settings, kind, start, s.out, s.errOut)
	last, err := d.displayIter(it)
	if err != nil {
		return nil, false, err
	}
	if last == nil {
		last = &driver.ServerStats{}
	}
	return last, false, nil
}

// handleRepl runs the interactive loop until exit/quit or end of input.
func (s *Session) handleRepl(ctx context.Context) {
	reader := bufio.NewReader(s.in)
	for {
		fmt.Fprint(s.out, s.prompt())
		line, readErr := reader.ReadString('\n')
		for _, stmt := range s.appendLine(strings.TrimRight(line, "\r\n")) {
			s.addHistory(stmt)
			_, quit, err := s.handleQuery(ctx, stmt)
			if quit {
				fmt.Fprintln(s.out, "Bye~")
				return
			}
			if err == nil {
				continue
			}
			if strings.Contains(err.Error(), "Unauthenticated") {
				if rerr := s.reconnect(ctx); rerr != nil {
					fmt.Fprintf(s.errOut, "reconnect error: %v\n", rerr)
				} else if _, _, err = s.handleQuery(ctx, stmt); err != nil {
					fmt.Fprintf(s.errOut, "error: %v\n", err)
				}
			} else {
				fmt.Fprintf(s.errOut, "error: %v\n", err)
				s.pending = ""
				break
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				fmt.Fprintf(s.errOut, "io err: %v\n", readErr)
			}
			break
		}
	}
	fmt.Fprintln(s.out, "Bye~")
}

// handleReader executes a statement script from r. The final statement does
// not need a trailing separator.
func (s *Session) handleReader(ctx context.Context, r io.Reader) error {
	start := time.Now()
	var last *driver.ServerStats

	execute := func(stmt string) error {
		stats, _, err := s.handleQuery(ctx, stmt)
		if err != nil {
			return err
		}
		if stats != nil {
			last = stats
		}
		return nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		for _, stmt := range s.appendLine(sc.Text()) {
			if err := execute(stmt); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read lines: %w", err)
	}
	for _, stmt := range s.flushPending() {
		if err := execute(stmt); err != nil {
			return err
		}
	}

	switch s.settings.Time {
	case TimeLocal:
		fmt.Fprintf(s.out, "%.3f\n", time.Since(start).Seconds())
	case TimeServer:
		var ms float64
		if last != nil {
			ms = last.RunningTimeMS
		}
		fmt.Fprintf(s.out, "%.3f\n", ms/1000)
	}
	return nil
}

// streamLoadStdin spools stdin to a temporary file and loads it. The file is
// removed on every exit path.
func (s *Session) streamLoadStdin(ctx context.Context, sql string, options map[string]string) error {
	f, err := os.CreateTemp("", "bendsql_*")
	if err != nil {
		return err
	}
	name := f.Name()
	defer os.Remove(name)
	_, err = io.Copy(f, s.in)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("spool stdin: %w", err)
	}
	return s.streamLoadFile(ctx, sql, name, options)
}

func (s *Session) streamLoadFile(ctx context.Context, sql, path string, options map[string]string) error {
	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	stats, err := s.conn.LoadData(ctx, sql, f, fi.Size(), options, nil)
	if err != nil {
		return err
	}
	if s.settings.ShowProgress {
		fmt.Fprintf(s.errOut, "==> stream loaded %s:\n    %s\n", path, formatWriteProgress(stats, time.Since(start).Seconds()))
	}
	return nil
}

// reconnect rebuilds the connection from the stored DSN.
func (s *Session) reconnect(ctx context.Context) error {
	conn, err := driver.NewConnection(s.dsn)
	if err != nil {
		return err
	}
	old := s.conn
	s.conn = conn
	old.Close()
	if s.isRepl {
		info := s.conn.Info()
		fmt.Fprintf(s.errOut, "reconnecting to %s:%d as user %s.\n", info.Host, info.Port, info.User)
		version, err := s.conn.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.errOut, "connected to %s\n\n", version)
	}
	return nil
}
