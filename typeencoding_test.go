//go:build darwin

package bridge

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSimplifyStripsQualifiers(t *testing.T) {
	cases := map[string]string{
		"i":     "i",
		"ri":    "i",
		"nnri":  "i",
		"@":     "@",
		"r@":    "@",
		"":      "",
	}
	for in, want := range cases {
		if got := simplify(in); got != want {
			t.Errorf("simplify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsBlock(t *testing.T) {
	if !isBlock("@?") {
		t.Error("bare @? should be a block")
	}
	if !isBlock("@?<v@?>") {
		t.Error("extended block signature should be a block")
	}
	if isBlock("@") {
		t.Error("plain object encoding should not be a block")
	}
}

func TestSkipOneScalars(t *testing.T) {
	s := "i@:"
	tok, err := skipOne(&s)
	if err != nil {
		t.Fatal(err)
	}
	if tok != "i" {
		t.Errorf("tok = %q, want %q", tok, "i")
	}
	if s != "@:" {
		t.Errorf("remainder = %q, want %q", s, "@:")
	}
}

func TestSkipOneStruct(t *testing.T) {
	s := "{CGRect={CGPoint=dd}{CGSize=dd}}i"
	tok, err := skipOne(&s)
	if err != nil {
		t.Fatal(err)
	}
	if tok != "{CGRect={CGPoint=dd}{CGSize=dd}}" {
		t.Errorf("tok = %q", tok)
	}
	if s != "i" {
		t.Errorf("remainder = %q, want %q", s, "i")
	}
}

func TestSkipOneQuotedField(t *testing.T) {
	s := `"x"d"y"d`
	tok, err := skipOne(&s)
	if err != nil {
		t.Fatal(err)
	}
	if tok != `"x"d` {
		t.Errorf("tok = %q", tok)
	}
	if s != `"y"d` {
		t.Errorf("remainder = %q", s)
	}
}

func TestSkipOneUnbalanced(t *testing.T) {
	s := "{CGRect=dd"
	if _, err := skipOne(&s); err == nil {
		t.Error("expected an error for an unbalanced struct encoding")
	}
}

func TestSkipDigits(t *testing.T) {
	if got := skipDigits("123abc"); got != "abc" {
		t.Errorf("skipDigits = %q, want %q", got, "abc")
	}
	if got := skipDigits("abc"); got != "abc" {
		t.Errorf("skipDigits = %q, want %q", got, "abc")
	}
}

func TestExtractArgFromMethodType(t *testing.T) {
	// -(void)setX:(int)x y:(double)y; self, _cmd, x, y
	enc := "v40@0:8i16d24"
	tok, err := extractArgFromMethodType(enc, 0)
	if err != nil {
		t.Fatal(err)
	}
	if tok != "@" {
		t.Errorf("arg0 = %q, want %q", tok, "@")
	}
	tok, err = extractArgFromMethodType(enc, 2)
	if err != nil {
		t.Fatal(err)
	}
	if tok != "i" {
		t.Errorf("arg2 = %q, want %q", tok, "i")
	}
	if _, err := extractArgFromMethodType(enc, 9); err == nil {
		t.Error("expected an error for an out-of-range argument index")
	}
}

func TestCountMethodArgs(t *testing.T) {
	n, err := countMethodArgs("v40@0:8i16d24")
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("countMethodArgs = %d, want 4", n)
	}
}

func TestParseStructCGRect(t *testing.T) {
	ps, err := parseStruct("{CGRect={CGPoint=dd}{CGSize=dd}}")
	if err != nil {
		t.Fatal(err)
	}
	if ps.Name != "CGRect" {
		t.Errorf("Name = %q, want CGRect", ps.Name)
	}
	if len(ps.Fields) != 2 {
		t.Fatalf("len(Fields) = %d, want 2", len(ps.Fields))
	}
	if ps.Fields[0].Name != "origin" || ps.Fields[1].Name != "size" {
		t.Errorf("field names = %q, %q, want origin, size", ps.Fields[0].Name, ps.Fields[1].Name)
	}
	if !ps.Fields[0].IsStruct || !ps.Fields[1].IsStruct {
		t.Error("nested CGPoint/CGSize fields should be flagged IsStruct")
	}
	if len(ps.Fields[0].Subfields) != 2 {
		t.Errorf("origin subfields = %d, want 2 (x, y)", len(ps.Fields[0].Subfields))
	}
}

func TestParseStructIdempotent(t *testing.T) {
	enc := "{CGRect={CGPoint=dd}{CGSize=dd}}"
	a, err := parseStruct(enc)
	if err != nil {
		t.Fatal(err)
	}
	b, err := parseStruct(enc)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("parseStruct should return the same *ParsedStruct pointer for repeated calls with an identical encoding")
	}
}

func TestParseStructNamedFields(t *testing.T) {
	ps, err := parseStruct(`{Point="x"i"y"i}`)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"x", "y"}, []string{ps.Fields[0].Name, ps.Fields[1].Name}); diff != "" {
		t.Errorf("field names mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStructRejectsNonStruct(t *testing.T) {
	if _, err := parseStruct("i"); err == nil {
		t.Error("expected an error parsing a scalar as a struct")
	}
}

func TestParseBlockSignature(t *testing.T) {
	bs, err := parseBlockSignature("@?<v@?i>")
	if err != nil {
		t.Fatal(err)
	}
	if bs.Return != "v" {
		t.Errorf("Return = %q, want v", bs.Return)
	}
	if len(bs.Params) != 1 || bs.Params[0] != "i" {
		t.Errorf("Params = %v, want [i]", bs.Params)
	}
}

func TestParseBlockSignatureBareRejected(t *testing.T) {
	if _, err := parseBlockSignature("@?"); err == nil {
		t.Error("a bare @? has no extended signature and should error")
	}
}

func TestAlignUp(t *testing.T) {
	cases := []struct{ x, a, want uintptr }{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 8, 8},
		{5, 1, 5},
	}
	for _, c := range cases {
		if got := alignUp(c.x, c.a); got != c.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", c.x, c.a, got, c.want)
		}
	}
}
