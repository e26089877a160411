package kernel

import (
	"strings"
	"testing"
)

func TestLookupDialect(t *testing.T) {
	for _, name := range DialectNames() {
		d, err := LookupDialect(name)
		if err != nil {
			t.Errorf("LookupDialect(%q) error = %v", name, err)
			continue
		}
		if d.Frame == nil || len(d.Executables) == 0 {
			t.Errorf("dialect %q is incomplete", name)
		}
	}

	if d, err := LookupDialect("WOLFRAM"); err != nil || d.Name != "wolfram" {
		t.Errorf("LookupDialect is not case-insensitive: %v", err)
	}
	if _, err := LookupDialect("python"); err == nil {
		t.Error("LookupDialect(python) succeeded")
	}
}

func TestFrameWolfram(t *testing.T) {
	got := frameWolfram("Print[\"a\\b\"]\nx = 1", "SENT")

	if !strings.HasSuffix(got, "\n") || strings.Count(got, "\n") != 1 {
		t.Errorf("frame must be a single line: %q", got)
	}
	if !strings.Contains(got, `ToExpression["Print[\"a\\b\"]\nx = 1", InputForm]`) {
		t.Errorf("code not quoted as expected: %q", got)
	}
	if !strings.Contains(got, `Print["SENT ", If[kgResult === $Failed, 1, 0]]`) {
		t.Errorf("sentinel trailer missing: %q", got)
	}
}

func TestFrameShell(t *testing.T) {
	got := frameShell("echo 'x'", "SENT")
	want := "command eval 'echo '\\''x'\\''' 2>&1 </dev/null\nprintf '\\n%s %d\\n' 'SENT' \"$?\"\n"
	if got != want {
		t.Errorf("frameShell() =\n%q\nwant\n%q", got, want)
	}
}
