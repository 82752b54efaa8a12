package sqlscript

import (
	"strings"
	"unicode"
)

// QueryKind classifies a statement by its leading keyword, deciding how an
// interactive session runs and displays it.
type QueryKind int

const (
	// KindQuery statements return rows.
	KindQuery QueryKind = iota
	// KindUpdate statements return an affected row count.
	KindUpdate
	// KindExplain statements return a plan as text lines.
	KindExplain
	// KindPut uploads local files into a stage.
	KindPut
	// KindGet downloads stage files to a local directory.
	KindGet
)

func (k QueryKind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindUpdate:
		return "update"
	case KindExplain:
		return "explain"
	case KindPut:
		return "put"
	case KindGet:
		return "get"
	default:
		return "unknown"
	}
}

var updateKeywords = map[string]bool{
	"ALTER":    true,
	"CREATE":   true,
	"DELETE":   true,
	"DROP":     true,
	"INSERT":   true,
	"OPTIMIZE": true,
	"UPDATE":   true,
}

// KindOf classifies sql by its first keyword.
func KindOf(sql string) QueryKind {
	sql = strings.TrimSpace(sql)
	first := sql
	if i := strings.IndexFunc(sql, unicode.IsSpace); i >= 0 {
		first = sql[:i]
	}
	first = strings.ToUpper(first)
	switch {
	case first == "EXPLAIN":
		return KindExplain
	case first == "PUT":
		return KindPut
	case first == "GET":
		return KindGet
	case updateKeywords[first]:
		return KindUpdate
	default:
		return KindQuery
	}
}
