package snowflake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "simple",
			script: "USE ROLE SYSADMIN;\nCREATE DATABASE IF NOT EXISTS VIDEXA_SHARED;",
			want:   []string{"USE ROLE SYSADMIN", "CREATE DATABASE IF NOT EXISTS VIDEXA_SHARED"},
		},
		{
			name:   "no trailing semicolon",
			script: "SELECT 1;\nSELECT 2",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "semicolon in string",
			script: "INSERT INTO T VALUES ('a;b');SELECT 1;",
			want:   []string{"INSERT INTO T VALUES ('a;b')", "SELECT 1"},
		},
		{
			name:   "doubled quote",
			script: "SELECT 'it''s; fine';",
			want:   []string{"SELECT 'it''s; fine'"},
		},
		{
			name:   "quoted identifier",
			script: `SELECT 1 AS "a;b";`,
			want:   []string{`SELECT 1 AS "a;b"`},
		},
		{
			name:   "line comments dropped",
			script: "-- header; with semicolon\nSELECT 1; -- trailing\n-- only comment\n",
			want:   []string{"SELECT 1"},
		},
		{
			name:   "block comments dropped",
			script: "/* multi\n line; */\nSELECT /* inline */ 1;",
			want:   []string{"SELECT   1"},
		},
		{
			name:   "comment markers inside strings kept",
			script: "SELECT '-- not a comment', '/* nor this */';",
			want:   []string{"SELECT '-- not a comment', '/* nor this */'"},
		},
		{
			name: "dollar quoted procedure body",
			script: `CREATE OR REPLACE PROCEDURE P()
RETURNS STRING
LANGUAGE SQL
AS
$$
BEGIN
  INSERT INTO T VALUES (1);
  RETURN 'ok';
END;
$$;
SELECT 1;`,
			want: []string{
				"CREATE OR REPLACE PROCEDURE P()\nRETURNS STRING\nLANGUAGE SQL\nAS\n$$\nBEGIN\n  INSERT INTO T VALUES (1);\n  RETURN 'ok';\nEND;\n$$",
				"SELECT 1",
			},
		},
		{
			name:   "blank statements skipped",
			script: ";;\n  ;SELECT 1;;",
			want:   []string{"SELECT 1"},
		},
		{
			name:   "unterminated string",
			script: "SELECT 'abc",
			want:   []string{"SELECT 'abc"},
		},
		{
			name:   "empty",
			script: "",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitStatements(tt.script))
		})
	}
}

func TestValidateIdentifier(t *testing.T) {
	valid := []string{"HCS0001_DB", "VIDEXA_SHARED.TENANT_MANAGEMENT", "_tmp", "A$B"}
	for _, name := range valid {
		assert.NoError(t, ValidateIdentifier(name), name)
	}

	invalid := []string{"", "1DB", "DB NAME", "DB;DROP", `"QUOTED"`, "A..B", "DB-1"}
	for _, name := range invalid {
		assert.Error(t, ValidateIdentifier(name), name)
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"HCS0001_DB"`, QuoteIdent("HCS0001_DB"))
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
}
