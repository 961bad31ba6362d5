package analyzer

import (
	"testing"
)

const clippyFixture = `{"reason":"compiler-artifact","target":{"name":"demo"}}
{"reason":"compiler-message","message":{"code":{"code":"clippy::unused_async"},"level":"warning","message":"unused ` + "`async`" + ` for function with no await statements","spans":[{"file_name":"src/main.rs","byte_start":120,"byte_end":125,"is_primary":true,"suggested_replacement":null}]}}
{"reason":"compiler-message","message":{"code":{"code":"clippy::float_cmp"},"level":"warning","message":"strict comparison of f64 values","spans":[{"file_name":"src/math.rs","byte_start":40,"byte_end":52,"is_primary":false},{"file_name":"src/math.rs","byte_start":44,"byte_end":52,"is_primary":true,"suggested_replacement":"(a - b).abs() < f64::EPSILON"}]}}
{"reason":"compiler-message","message":{"code":null,"level":"warning","message":"2 warnings emitted","spans":[]}}
{"reason":"build-finished","success":true}
`

func TestParseClippyJSON(t *testing.T) {
	raws, err := ParseClippyJSON([]byte(clippyFixture))
	if err != nil {
		t.Fatalf("ParseClippyJSON: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("got %d records, want 2", len(raws))
	}

	first := raws[0]
	if first.Code != "unused-async" {
		t.Errorf("code = %q, want normalized unused-async", first.Code)
	}
	if first.File != "src/main.rs" || first.Start != 120 || first.End != 125 {
		t.Errorf("span = %s %d..%d", first.File, first.Start, first.End)
	}
	if first.Severity != "warning" {
		t.Errorf("severity = %q", first.Severity)
	}

	second := raws[1]
	if second.Code != "float-cmp" {
		t.Errorf("code = %q", second.Code)
	}
	// The primary span wins over the first span.
	if second.Start != 44 || second.End != 52 {
		t.Errorf("span = %d..%d, want primary 44..52", second.Start, second.End)
	}
	if second.Suggestion != "(a - b).abs() < f64::EPSILON" {
		t.Errorf("suggestion = %q", second.Suggestion)
	}
}

func TestParseClippyJSONSkipsGarbage(t *testing.T) {
	input := "   Compiling demo v0.1.0\nnot json at all\n{\"reason\":\"weird\"}\n"
	raws, err := ParseClippyJSON([]byte(input))
	if err != nil {
		t.Fatalf("ParseClippyJSON: %v", err)
	}
	if len(raws) != 0 {
		t.Errorf("expected no records, got %+v", raws)
	}
}

func TestParseJSONLines(t *testing.T) {
	input := `{"code":"missing-docs","message":"missing documentation","severity":"warning","file":"src/lib.rs","start":10,"end":25}

{"code":"float-cmp","message":"strict comparison","severity":"error","file":"src/math.rs","start":5,"end":9,"suggestion":"abs"}
`
	raws, err := ParseJSONLines([]byte(input))
	if err != nil {
		t.Fatalf("ParseJSONLines: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("got %d records, want 2", len(raws))
	}
	if raws[0].Code != "missing-docs" || raws[1].Suggestion != "abs" {
		t.Errorf("records = %+v", raws)
	}
}

func TestParseUnknownFormat(t *testing.T) {
	if _, err := Parse("xml", nil); err == nil {
		t.Fatal("expected unknown format error")
	}
}
