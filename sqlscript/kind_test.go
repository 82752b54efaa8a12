package sqlscript

import "testing"

func TestKindOf(t *testing.T) {
	tests := []struct {
		sql  string
		kind QueryKind
	}{
		{"SELECT 1", KindQuery},
		{"select * from t", KindQuery},
		{"  WITH a AS (SELECT 1) SELECT * FROM a", KindQuery},
		{"SHOW TABLES", KindQuery},
		{"EXPLAIN SELECT 1", KindExplain},
		{"explain pipeline select 1", KindExplain},
		{"PUT fs:///tmp/books.csv @~/data", KindPut},
		{"get @~/data fs:///tmp/out", KindGet},
		{"INSERT INTO t VALUES (1)", KindUpdate},
		{"update t set a = 1", KindUpdate},
		{"DELETE FROM t", KindUpdate},
		{"CREATE TABLE t (a INT)", KindUpdate},
		{"DROP TABLE t", KindUpdate},
		{"ALTER TABLE t ADD COLUMN b INT", KindUpdate},
		{"OPTIMIZE TABLE t COMPACT", KindUpdate},
		{"TRUNCATE TABLE t", KindQuery},
		{"COPY INTO t FROM @s", KindQuery},
		{"", KindQuery},
	}
	for _, test := range tests {
		t.Run(test.sql, func(t *testing.T) {
			if got := KindOf(test.sql); got != test.kind {
				t.Fatalf("got %v, want %v", got, test.kind)
			}
		})
	}
}
