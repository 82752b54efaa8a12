package sqlscript

import (
	"bufio"
	"strings"
	"testing"
)

func testScan(t *testing.T, separator rune, comments bool, script string, result []string) {
	scanner := bufio.NewScanner(strings.NewReader(script))
	if separator == DefaultSeparator && !comments {
		// if default values use Scan function directly
		scanner.Split(Scan)
	} else {
		// else use SplitFunc 'getter'
		scanner.Split(ScanFunc(separator, comments))
	}

	l := len(result)
	i := 0
	for scanner.Scan() {
		if l <= i {
			t.Fatalf("for scan line %d result line is missing", i)
		}

		text := scanner.Text()
		if text != result[i] {
			t.Fatalf("line %d got text\n%s\nexpected\n%s", i, text, result[i])
		}
		i++
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	if i != l {
		t.Fatalf("got number of lines: %d - expected %d", i, l)
	}
}

func TestScript(t *testing.T) {
	testScript := `
--Comment 1
--Comment 2
STATEMENT;

--Comment 3
STATEMENT WITH PARAMETERS;

--Comment 4
STATEMENT WITH QUOTED LIST 'a,b,c';
STATEMENT WITHOUT COMMENT;

--COMMENT 5
MULTI LINE STATEMENT WITH
 PARAMETERS A
 B AND C;

--COMMENT 6
MULTI LINE STATEMENT WITH SINGLE QUOTED PARAMETER '
--A
--B
--C' LOOKING LIKE COMMENTS;

--COMMENT 7
MULTI LINE STATEMENT WITH DOUBLE QUOTED PARAMETER "
--A
--B
--C" LOOKING LIKE COMMENTS;
`
	noCommentsResult := []string{
		"STATEMENT",
		"STATEMENT WITH PARAMETERS",
		"STATEMENT WITH QUOTED LIST 'a,b,c'",
		"STATEMENT WITHOUT COMMENT",
		"MULTI LINE STATEMENT WITH PARAMETERS A B AND C",
		"MULTI LINE STATEMENT WITH SINGLE QUOTED PARAMETER '\n--A\n--B\n--C' LOOKING LIKE COMMENTS",
		"MULTI LINE STATEMENT WITH DOUBLE QUOTED PARAMETER \"\n--A\n--B\n--C\" LOOKING LIKE COMMENTS",
	}

	commentsResult := []string{
		"--Comment 1\n--Comment 2\nSTATEMENT",
		"--Comment 3\nSTATEMENT WITH PARAMETERS",
		"--Comment 4\nSTATEMENT WITH QUOTED LIST 'a,b,c'",
		"STATEMENT WITHOUT COMMENT",
		"--COMMENT 5\nMULTI LINE STATEMENT WITH PARAMETERS A B AND C",
		"--COMMENT 6\nMULTI LINE STATEMENT WITH SINGLE QUOTED PARAMETER '\n--A\n--B\n--C' LOOKING LIKE COMMENTS",
		"--COMMENT 7\nMULTI LINE STATEMENT WITH DOUBLE QUOTED PARAMETER \"\n--A\n--B\n--C\" LOOKING LIKE COMMENTS",
	}

	testScan(t, DefaultSeparator, false, testScript, noCommentsResult)
	testScan(t, DefaultSeparator, true, testScript, commentsResult)
}

func TestScriptExtras(t *testing.T) {
	tests := []struct {
		name   string
		script string
		result []string
	}{
		{
			"backquoted identifiers",
			"SELECT `a;b` FROM `my;table`;",
			[]string{"SELECT `a;b` FROM `my;table`"},
		},
		{
			"block comments",
			"/* leading */ SELECT /* inner; */ 1;",
			[]string{"SELECT 1"},
		},
		{
			"multi line block comment",
			"/* first\nsecond */\nSELECT 2;",
			[]string{"SELECT 2"},
		},
		{
			"trailing line comment",
			"SELECT 1 -- one; two\n+ 2;",
			[]string{"SELECT 1 + 2"},
		},
		{
			"doubled quotes stay inside",
			"SELECT 'it''s';",
			[]string{"SELECT 'it''s'"},
		},
		{
			"final statement without separator",
			"SELECT 1;\nSELECT 2",
			[]string{"SELECT 1", "SELECT 2"},
		},
		{
			"whitespace runs collapse",
			"SELECT\t\t1,\n       2;",
			[]string{"SELECT 1, 2"},
		},
		{
			"comments only",
			"-- nothing here\n/* nor here */",
			nil,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			testScan(t, DefaultSeparator, false, test.script, test.result)
		})
	}
}

func TestStatements(t *testing.T) {
	tests := []struct {
		name  string
		input string
		stmts []string
		rest  string
	}{
		{"empty", "", nil, ""},
		{"incomplete", "SELECT 1", nil, "SELECT 1"},
		{"complete", "SELECT 1;", []string{"SELECT 1"}, ""},
		{"complete and remainder", "SELECT 1; SELECT", []string{"SELECT 1"}, " SELECT"},
		{"two statements", "SELECT 1; SELECT 2;", []string{"SELECT 1", "SELECT 2"}, ""},
		{"open string", "SELECT 'a;b", nil, "SELECT 'a;b"},
		{"open backquote", "SELECT `a;b", nil, "SELECT `a;b"},
		{"open block comment", "SELECT 1 /* pending;", nil, "SELECT 1 /* pending;"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			stmts, rest := Statements(test.input)
			if len(stmts) != len(test.stmts) {
				t.Fatalf("got %v, want %v", stmts, test.stmts)
			}
			for i := range stmts {
				if stmts[i] != test.stmts[i] {
					t.Fatalf("statement %d: got %q, want %q", i, stmts[i], test.stmts[i])
				}
			}
			if rest != test.rest {
				t.Fatalf("rest: got %q, want %q", rest, test.rest)
			}
		})
	}
}
