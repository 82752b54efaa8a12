package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/shopspring/decimal"
	"golang.org/x/text/width"

	"github.com/databendcloud/databend-client/driver"
	"github.com/databendcloud/databend-client/sqlscript"
)

// displayer renders one result stream in the configured output format and
// reports progress and a stats summary on stderr.
type displayer struct {
	settings *Settings
	kind     sqlscript.QueryKind
	start    time.Time
	out      io.Writer
	errOut   io.Writer

	rowCount      int64
	progressShown bool
}

func newDisplayer(settings *Settings, kind sqlscript.QueryKind, start time.Time, out, errOut io.Writer) *displayer {
	return &displayer{settings: settings, kind: kind, start: start, out: out, errOut: errOut}
}

// displayIter consumes it and returns the last server stats seen, which may
// be nil for results that fit a single page.
func (d *displayer) displayIter(it *driver.RowStatsIterator) (*driver.ServerStats, error) {
	defer it.Close()
	var (
		last *driver.ServerStats
		err  error
	)
	switch d.settings.OutputFormat {
	case OutputTable:
		last, err = d.displayTable(it)
	case OutputNull:
		last, err = d.displayNull(it)
	case OutputNDJSON:
		last, err = d.displayNDJSON(it)
	default: // csv, tsv
		last, err = d.displayDelimited(it)
	}
	if err != nil {
		return nil, err
	}
	d.displayStats(last)
	return last, nil
}

func (d *displayer) displayTable(it *driver.RowStatsIterator) (*driver.ServerStats, error) {
	var last *driver.ServerStats
	var rows [][]string
	for it.Next() {
		if ss := it.Stats(); ss != nil {
			last = ss
			d.progress(ss)
			continue
		}
		row := it.Row()
		cells := make([]string, row.Len())
		for i, v := range row.Values() {
			cell := driver.FormatValue(v, "NULL")
			if d.settings.ReplaceNewline && d.kind != sqlscript.KindExplain {
				cell = strings.ReplaceAll(cell, "\n", "\\n")
			}
			cells[i] = cell
		}
		rows = append(rows, cells)
		d.rowCount++
	}
	d.clearProgress()
	if err := it.Err(); err != nil {
		return nil, err
	}
	d.renderTable(it.Schema(), rows)
	return last, nil
}

func (d *displayer) displayNull(it *driver.RowStatsIterator) (*driver.ServerStats, error) {
	var last *driver.ServerStats
	for it.Next() {
		if ss := it.Stats(); ss != nil {
			last = ss
			d.progress(ss)
			continue
		}
		d.rowCount++
	}
	d.clearProgress()
	return last, it.Err()
}

func (d *displayer) displayDelimited(it *driver.RowStatsIterator) (*driver.ServerStats, error) {
	sep := ","
	tsv := d.settings.OutputFormat == OutputTSV
	if tsv {
		sep = "\t"
	}
	var last *driver.ServerStats
	for it.Next() {
		if ss := it.Stats(); ss != nil {
			last = ss
			continue
		}
		row := it.Row()
		parts := make([]string, row.Len())
		for i, v := range row.Values() {
			cell := driver.FormatValue(v, "")
			if tsv {
				parts[i] = escapeTSV(cell)
			} else {
				parts[i] = quoteCSV(cell, d.settings.QuoteStyle, isNumericValue(v))
			}
		}
		fmt.Fprintln(d.out, strings.Join(parts, sep))
		d.rowCount++
	}
	return last, it.Err()
}

func (d *displayer) displayNDJSON(it *driver.RowStatsIterator) (*driver.ServerStats, error) {
	schema := it.Schema()
	var last *driver.ServerStats
	var sb strings.Builder
	for it.Next() {
		if ss := it.Stats(); ss != nil {
			last = ss
			continue
		}
		sb.Reset()
		sb.WriteByte('{')
		for i, v := range it.Row().Values() {
			if i > 0 {
				sb.WriteByte(',')
			}
			name, _ := json.Marshal(schema[i].Name)
			sb.Write(name)
			sb.WriteByte(':')
			sb.Write(jsonValue(v))
		}
		sb.WriteByte('}')
		fmt.Fprintln(d.out, sb.String())
		d.rowCount++
	}
	return last, it.Err()
}

func jsonValue(v any) []byte {
	switch v := v.(type) {
	case nil:
		return []byte("null")
	case time.Time:
		b, _ := json.Marshal(driver.FormatValue(v, ""))
		return b
	default:
		b, err := json.Marshal(v)
		if err != nil {
			b, _ = json.Marshal(fmt.Sprint(v))
		}
		return b
	}
}

// progress overwrites a single stderr line with the scan progress. Only
// table and null output render progress, following the --progress contract.
func (d *displayer) progress(ss *driver.ServerStats) {
	if !d.settings.ShowProgress {
		return
	}
	elapsed := elapsedSince(d.start)
	fmt.Fprintf(d.errOut, "\rProcessing %s rows, %s (%s rows/s, %s/s)\x1b[K",
		humanCount(float64(ss.ScanProgress.Rows)),
		units.HumanSize(float64(ss.ScanProgress.Bytes)),
		humanCount(float64(ss.ScanProgress.Rows)/elapsed),
		units.HumanSize(float64(ss.ScanProgress.Bytes)/elapsed))
	d.progressShown = true
}

func (d *displayer) clearProgress() {
	if d.progressShown {
		fmt.Fprint(d.errOut, "\r\x1b[K")
		d.progressShown = false
	}
}

// displayStats writes the summary line below a result. Without a server
// stats update (single page results) only the local row count is reported.
func (d *displayer) displayStats(ss *driver.ServerStats) {
	if !d.settings.ShowStats {
		return
	}
	elapsed := elapsedSince(d.start)
	verb := "read"
	rows := d.rowCount
	var p driver.Progress
	if ss != nil {
		p = ss.ScanProgress
	}
	if d.kind == sqlscript.KindUpdate {
		verb = "written"
		rows = 0
		if ss != nil {
			rows = ss.WriteProgress.Rows
			p = ss.WriteProgress
		}
	}
	msg := fmt.Sprintf("%d rows %s in %.3f sec.", rows, verb, elapsed)
	if ss != nil {
		msg += fmt.Sprintf(" Processed %s rows, %s (%s rows/s, %s/s)",
			humanCount(float64(p.Rows)), units.HumanSize(float64(p.Bytes)),
			humanCount(float64(p.Rows)/elapsed), units.HumanSize(float64(p.Bytes)/elapsed))
	}
	fmt.Fprintln(d.errOut, msg)
	fmt.Fprintln(d.errOut)
}

func (d *displayer) renderTable(schema driver.Schema, rows [][]string) {
	cols := len(schema)
	if cols == 0 {
		return
	}

	display := rows
	truncated := false
	if max := d.settings.MaxDisplayRows; max > 0 && len(rows) > max {
		head := (max + 1) / 2
		tail := max / 2
		marker := make([]string, cols)
		for i := range marker {
			marker[i] = "·"
		}
		display = make([][]string, 0, max+1)
		display = append(display, rows[:head]...)
		display = append(display, marker)
		display = append(display, rows[len(rows)-tail:]...)
		truncated = true
	}

	headers := make([]string, cols)
	numeric := make([]bool, cols)
	widths := make([]int, cols)
	for i, f := range schema {
		headers[i] = f.Name
		numeric[i] = isNumericType(f.Type)
		widths[i] = displayWidth(f.Name)
	}
	for _, row := range display {
		for i, cell := range row {
			if i < cols {
				if w := displayWidth(cell); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}

	var sb strings.Builder
	for _, w := range widths {
		sb.WriteByte('+')
		sb.WriteString(strings.Repeat("-", w+2))
	}
	sb.WriteByte('+')
	border := sb.String()

	fmt.Fprintln(d.out, border)
	fmt.Fprintln(d.out, renderTableRow(headers, widths, nil))
	fmt.Fprintln(d.out, border)
	for _, row := range display {
		fmt.Fprintln(d.out, renderTableRow(row, widths, numeric))
	}
	fmt.Fprintln(d.out, border)
	if truncated {
		fmt.Fprintf(d.out, "(%d rows, %d shown)\n", len(rows), d.settings.MaxDisplayRows)
	}
}

// renderTableRow pads cells to the column widths; numeric columns are right
// aligned, nil aligns everything left (used for the header row).
func renderTableRow(cells []string, widths []int, numeric []bool) string {
	var sb strings.Builder
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		pad := w - displayWidth(cell)
		if pad < 0 {
			pad = 0
		}
		sb.WriteString("| ")
		if numeric != nil && numeric[i] {
			sb.WriteString(strings.Repeat(" ", pad))
			sb.WriteString(cell)
		} else {
			sb.WriteString(cell)
			sb.WriteString(strings.Repeat(" ", pad))
		}
		sb.WriteByte(' ')
	}
	sb.WriteByte('|')
	return sb.String()
}

// displayWidth is the terminal cell width of s, counting east asian wide and
// fullwidth runes twice.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w += 2
		default:
			w++
		}
	}
	return w
}

func isNumericType(typ string) bool {
	t := strings.ToLower(typ)
	if strings.HasPrefix(t, "nullable(") && strings.HasSuffix(t, ")") {
		t = t[len("nullable(") : len(t)-1]
	}
	for _, prefix := range []string{"int", "uint", "float", "double", "decimal"} {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

func isNumericValue(v any) bool {
	switch v.(type) {
	case int64, uint64, float64, decimal.Decimal:
		return true
	}
	return false
}

func quoteCSV(s string, style QuoteStyle, numeric bool) string {
	quote := false
	switch style {
	case QuoteAlways:
		quote = true
	case QuoteNever:
		quote = false
	case QuoteNonNumeric:
		quote = !numeric
	default:
		quote = strings.ContainsAny(s, ",\"\n\r")
	}
	if !quote {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func escapeTSV(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	return s
}

func formatWriteProgress(ss *driver.ServerStats, elapsed float64) string {
	if elapsed <= 0 {
		elapsed = 1e-9
	}
	return fmt.Sprintf("%d rows written in %.3f sec (%s rows/s, %s/s)",
		ss.WriteProgress.Rows, elapsed,
		humanCount(float64(ss.WriteProgress.Rows)/elapsed),
		units.HumanSize(float64(ss.WriteProgress.Bytes)/elapsed))
}

func elapsedSince(start time.Time) float64 {
	if elapsed := time.Since(start).Seconds(); elapsed > 0 {
		return elapsed
	}
	return 1e-9
}

func humanCount(n float64) string {
	abs := math.Abs(n)
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%.2f billion", n/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2f million", n/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2f thousand", n/1e3)
	default:
		return fmt.Sprintf("%.0f", n)
	}
}
