//go:build darwin

package bridge

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Qualifiers the runtime allows to prefix a type encoding. They are
// stripped by simplify and never change the underlying storage type.
const encodingQualifiers = "rnNoORV"

// simplify strips leading qualifier characters and returns the pointer
// advanced past them, per spec.md §4.1.
func simplify(enc string) string {
	i := 0
	for i < len(enc) && strings.IndexByte(encodingQualifiers, enc[i]) >= 0 {
		i++
	}
	return enc[i:]
}

// isBlock reports whether the simplified encoding denotes a block (@?).
func isBlock(enc string) bool {
	s := simplify(enc)
	return strings.HasPrefix(s, "@?")
}

// skipOne advances *p past exactly one balanced encoding token -- a
// scalar code, a quoted field name followed by a token, a pointer, a block
// ("@?" plus its "<...>" signature when present), or a
// bracketed/braced/parenthesized aggregate -- and returns the token
// consumed (qualifiers included).
func skipOne(p *string) (string, error) {
	s := *p
	start := 0
	i := 0
	for i < len(s) && strings.IndexByte(encodingQualifiers, s[i]) >= 0 {
		i++
	}
	if i >= len(s) {
		return "", fmt.Errorf("objc: truncated type encoding %q", s)
	}
	switch s[i] {
	case '"':
		// quoted field name; consume it, then the token it labels.
		j := i + 1
		for j < len(s) && s[j] != '"' {
			j++
		}
		if j >= len(s) {
			return "", fmt.Errorf("objc: unterminated quoted name in %q", s)
		}
		i = j + 1
		rest := s[i:]
		tok, err := skipOne(&rest)
		if err != nil {
			return "", err
		}
		i += len(tok)
	case '^':
		i++
		rest := s[i:]
		tok, err := skipOne(&rest)
		if err != nil {
			return "", err
		}
		i += len(tok)
	case '@':
		i++
		if i < len(s) && s[i] == '?' {
			i++
			if i < len(s) && s[i] == '<' {
				end, err := matchBalanced(s, i, '<', '>')
				if err != nil {
					return "", err
				}
				i = end
			}
		}
	case '{':
		end, err := matchBalanced(s, i, '{', '}')
		if err != nil {
			return "", err
		}
		i = end
	case '(':
		end, err := matchBalanced(s, i, '(', ')')
		if err != nil {
			return "", err
		}
		i = end
	case '[':
		end, err := matchBalanced(s, i, '[', ']')
		if err != nil {
			return "", err
		}
		i = end
	default:
		i++
		// digits following a scalar code (byte-offset annotations in
		// full method encodings) are not part of the type token itself;
		// callers that need them (extractArgFromMethodType) skip them
		// separately.
	}
	tok := s[start:i]
	*p = s[i:]
	return tok, nil
}

func matchBalanced(s string, start int, open, close byte) (int, error) {
	depth := 0
	i := start
	for i < len(s) {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
		i++
	}
	return 0, fmt.Errorf("objc: unbalanced %q in %q", string(open), s)
}

// skipDigits consumes a run of ASCII digits, used to skip the byte-offset
// annotations the runtime embeds in full method type encodings.
func skipDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[i:]
}

// extractArgFromMethodType walks a full method encoding (as returned by
// method_getTypeEncoding) and returns the encoding token of argument
// argIndex, qualifiers kept and byte-offset digits dropped. Index 0 is self, 1 is _cmd, user arguments start at 2. This
// exists because method_copyArgumentType discards the extended block tail
// on any @? argument, which the block factory (C9) needs intact.
func extractArgFromMethodType(methodEnc string, argIndex int) (string, error) {
	s := methodEnc
	// return type, then its byte offset digits.
	if _, err := skipOne(&s); err != nil {
		return "", err
	}
	s = skipDigits(s)
	for i := 0; i <= argIndex; i++ {
		tok, err := skipOne(&s)
		if err != nil {
			return "", fmt.Errorf("objc: method encoding %q has no argument %d", methodEnc, argIndex)
		}
		s = skipDigits(s)
		if i == argIndex {
			return tok, nil
		}
	}
	return "", fmt.Errorf("objc: method encoding %q has no argument %d", methodEnc, argIndex)
}

// countMethodArgs returns the number of arguments (including self, _cmd)
// encoded in a full method type encoding.
func countMethodArgs(methodEnc string) (int, error) {
	s := methodEnc
	if _, err := skipOne(&s); err != nil {
		return 0, err
	}
	s = skipDigits(s)
	n := 0
	for len(s) > 0 {
		if _, err := skipOne(&s); err != nil {
			return 0, err
		}
		s = skipDigits(s)
		n++
	}
	return n, nil
}

// ParsedStruct is the simplified view of an aggregate ObjC type encoding,
// per spec.md §3.
type ParsedStruct struct {
	Name      string
	TotalSize uintptr
	Alignment uintptr
	Fields    []StructField
	IsUnion   bool
}

type StructField struct {
	Name      string
	Encoding  string
	Offset    uintptr
	Size      uintptr
	Alignment uintptr
	IsStruct  bool
	Subfields []StructField
}

var (
	structCacheMu sync.Mutex
	structCache   = map[string]*ParsedStruct{}
)

// parseStruct parses a {Name=fields...} or (Name=fields...) encoding into a
// ParsedStruct, memoizing on the raw encoding string. Idempotent: repeated
// calls with the same string return the same *ParsedStruct (spec.md §8's
// "idempotent parse" property), because the cache is keyed by string and
// never invalidated.
func parseStruct(enc string) (*ParsedStruct, error) {
	structCacheMu.Lock()
	if ps, ok := structCache[enc]; ok {
		structCacheMu.Unlock()
		return ps, nil
	}
	structCacheMu.Unlock()

	ps, err := parseStructUncached(enc)
	if err != nil {
		return nil, err
	}

	structCacheMu.Lock()
	if existing, ok := structCache[enc]; ok {
		structCacheMu.Unlock()
		return existing, nil
	}
	structCache[enc] = ps
	structCacheMu.Unlock()
	return ps, nil
}

func parseStructUncached(enc string) (*ParsedStruct, error) {
	s := simplify(enc)
	isUnion := false
	var open, close byte = '{', '}'
	if strings.HasPrefix(s, "(") {
		isUnion = true
		open, close = '(', ')'
	} else if !strings.HasPrefix(s, "{") {
		return nil, &UnsupportedEncodingError{Encoding: enc, Reason: "not a struct/union encoding"}
	}
	if s[0] != open {
		return nil, &UnsupportedEncodingError{Encoding: enc, Reason: "mismatched aggregate delimiter"}
	}
	end, err := matchBalanced(s, 0, open, close)
	if err != nil {
		return nil, err
	}
	body := s[1 : end-1]
	name := ""
	if eq := strings.IndexByte(body, '='); eq >= 0 {
		name = body[:eq]
		body = body[eq+1:]
	} else {
		name = body
		body = ""
	}

	ps := &ParsedStruct{Name: name, IsUnion: isUnion}
	if body == "" {
		// opaque struct; ask the runtime for its size directly.
		sz, align := runtimeSizeAndAlignment(s)
		ps.TotalSize, ps.Alignment = sz, align
		return ps, nil
	}

	var offset uintptr
	maxAlign := uintptr(1)
	idx := 0
	rest := body
	for len(rest) > 0 {
		fieldName := wellKnownFieldName(name, idx)
		if rest[0] == '"' {
			j := 1
			for j < len(rest) && rest[j] != '"' {
				j++
			}
			fieldName = rest[1:j]
			rest = rest[j+1:]
		}
		tok, err := skipOne(&rest)
		if err != nil {
			return nil, err
		}
		size, align, isStruct, subfields, err := describeField(tok)
		if err != nil {
			return nil, err
		}
		f := StructField{Name: fieldName, Encoding: tok, Size: size, Alignment: align, IsStruct: isStruct, Subfields: subfields}
		if isUnion {
			f.Offset = 0
			if size > ps.TotalSize {
				ps.TotalSize = size
			}
		} else {
			off := alignUp(offset, align)
			f.Offset = off
			offset = off + size
		}
		if align > maxAlign {
			maxAlign = align
		}
		ps.Fields = append(ps.Fields, f)
		idx++
	}
	ps.Alignment = maxAlign
	if isUnion {
		ps.TotalSize = alignUp(ps.TotalSize, maxAlign)
	} else {
		ps.TotalSize = alignUp(offset, maxAlign)
	}
	return ps, nil
}

// describeField reports the size/alignment of one struct field's encoding,
// recursing into nested aggregates so ParsedStruct.Fields[i].Subfields is
// populated for nested structs (spec.md §3's ParsedStruct.subfields).
func describeField(tok string) (size, align uintptr, isStruct bool, subfields []StructField, err error) {
	s := simplify(tok)
	switch {
	case strings.HasPrefix(s, "{") || strings.HasPrefix(s, "("):
		nested, err := parseStruct(tok)
		if err != nil {
			return 0, 0, false, nil, err
		}
		return nested.TotalSize, nested.Alignment, true, nested.Fields, nil
	default:
		sz, al := runtimeSizeAndAlignment(tok)
		return sz, al, false, nil, nil
	}
}

func alignUp(x, a uintptr) uintptr {
	if a == 0 {
		return x
	}
	m := a - 1
	return (x + m) &^ m
}

// BlockSignature is the parsed extended form of a block encoding
// (@?<ret,blockself,params...>), per spec.md §4.1.
type BlockSignature struct {
	Return string
	Params []string
}

// parseBlockSignature requires the extended form; a bare "@?" carries no
// type information and must be handled by the caller's fallback
// (spec.md §4.9 step 1).
func parseBlockSignature(enc string) (*BlockSignature, error) {
	s := simplify(enc)
	if !strings.HasPrefix(s, "@?") {
		return nil, &UnsupportedEncodingError{Encoding: enc, Reason: "not a block encoding"}
	}
	s = s[2:]
	if !strings.HasPrefix(s, "<") {
		return nil, &UnsupportedEncodingError{Encoding: enc, Reason: "block has no extended signature"}
	}
	s = s[1:]
	if !strings.HasSuffix(s, ">") {
		return nil, &UnsupportedEncodingError{Encoding: enc, Reason: "unterminated block signature"}
	}
	s = s[:len(s)-1]

	retTok, err := skipOne(&s)
	if err != nil {
		return nil, fmt.Errorf("objc: block signature %q: %w", enc, err)
	}
	// second token is the block-self placeholder ("@?"), skipped.
	if _, err := skipOne(&s); err != nil {
		return nil, fmt.Errorf("objc: block signature %q: missing self param: %w", enc, err)
	}
	var params []string
	for len(s) > 0 {
		tok, err := skipOne(&s)
		if err != nil {
			return nil, fmt.Errorf("objc: block signature %q: %w", enc, err)
		}
		params = append(params, tok)
	}
	return &BlockSignature{Return: retTok, Params: params}, nil
}

// parseUint parses the decimal digits at the start of s (used by callers
// that need bit-offset numbers directly rather than just skipping them).
func parseUint(s string) (int, string) {
	digits := skipDigits(s)
	n := len(s) - len(digits)
	if n == 0 {
		return 0, s
	}
	v, _ := strconv.Atoi(s[:n])
	return v, digits
}
