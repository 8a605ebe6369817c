package anchor

import (
	"bytes"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hyperledger/fabric/common/flogging"
	json "github.com/nspcc-dev/go-ordered-json"
	"golang.org/x/text/unicode/norm"
)

var logger = flogging.MustGetLogger("horseregistry.anchor")

// ErrInvalidDocument is returned for documents that do not satisfy their schema.
var ErrInvalidDocument = errors.New("invalid document")

// Document is a structured record as decoded from JSON. Key order inside a
// Document carries no meaning; Canonicalize imposes the schema order.
type Document map[string]any

// Anchors holds everything derived from one canonical document.
type Anchors struct {
	Schema          string
	Canonical       []byte
	ContentHash     Digest
	SecretFieldHash Digest
}

// ParseDocument decodes a JSON object into a Document.
// Invalid UTF-8 is rejected rather than replaced.
func ParseDocument(data []byte) (Document, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: document is not valid UTF-8", ErrInvalidDocument)
	}
	var doc Document
	if err := stdjson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document must be a JSON object", ErrInvalidDocument)
	}
	return doc, nil
}

// Canonicalize serializes doc in the schema's fixed order without
// insignificant whitespace. Strings are NFC-normalized, numbers use the
// shortest round-trip form and nothing is HTML-escaped, so the output is
// byte-identical to a JavaScript JSON.stringify of the same ordered record.
// The ordered members are held in a go-ordered-json OrderedObject.
func Canonicalize(schema *Schema, doc Document) ([]byte, error) {
	normalized, err := normalize(doc)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(normalized); err != nil {
		return nil, err
	}

	ordered := make(json.OrderedObject, 0, len(schema.Sections))
	for _, section := range schema.Sections {
		values, _ := normalized[section.Name].(map[string]any)
		fields := make(json.OrderedObject, 0, len(section.Fields))
		for _, f := range section.Fields {
			v, err := canonicalValue(values[f.Name])
			if err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidDocument, section.Name, f.Name, err)
			}
			fields = append(fields, json.Member{Key: f.Name, Value: v})
		}
		ordered = append(ordered, json.Member{Key: section.Name, Value: fields})
	}
	return encode(ordered)
}

// Anchor canonicalizes doc and derives its content and secret-field hashes.
func Anchor(schema *Schema, doc Document) (*Anchors, error) {
	canonical, err := Canonicalize(schema, doc)
	if err != nil {
		return nil, err
	}
	secret, err := schema.SecretFieldHash(doc)
	if err != nil {
		return nil, err
	}
	a := &Anchors{
		Schema:          schema.Version,
		Canonical:       canonical,
		ContentHash:     Fingerprint(canonical),
		SecretFieldHash: secret,
	}
	logger.Debugf("Anchored %s document: contentHash=%s secretFieldHash=%s", schema.Version, a.ContentHash, a.SecretFieldHash)
	return a, nil
}

// SecretFieldHash fingerprints the sensitive fields of doc independently of
// the full document.
func (s *Schema) SecretFieldHash(doc Document) (Digest, error) {
	normalized, err := normalize(doc)
	if err != nil {
		return Digest{}, err
	}
	values := make([]string, 0, len(s.Sensitive))
	for _, sel := range s.Sensitive {
		sectionName, fieldName, ok := sel.split()
		if !ok {
			return Digest{}, fmt.Errorf("schema %s: malformed selector %q", s.Version, sel)
		}
		section, _ := normalized[sectionName].(map[string]any)
		raw, present := section[fieldName]
		if !present {
			return Digest{}, fmt.Errorf("%w: sensitive field %s is missing", ErrInvalidDocument, sel)
		}
		text, err := rawText(raw)
		if err != nil {
			return Digest{}, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, sel, err)
		}
		values = append(values, text)
	}
	return s.HashSecrets(values...)
}

// HashSecrets fingerprints already extracted sensitive values, given in
// selector order. A single selector hashes its raw UTF-8 text; several
// selectors hash the canonical JSON array of their individual digests.
func (s *Schema) HashSecrets(values ...string) (Digest, error) {
	if len(values) != len(s.Sensitive) {
		return Digest{}, fmt.Errorf("%w: schema %s expects %d sensitive values, got %d",
			ErrInvalidDocument, s.Version, len(s.Sensitive), len(values))
	}
	if len(values) == 0 {
		return Digest{}, fmt.Errorf("%w: schema %s has no sensitive fields", ErrInvalidDocument, s.Version)
	}
	if len(values) == 1 {
		return FingerprintString(norm.NFC.String(values[0])), nil
	}
	digests := make([]any, 0, len(values))
	for _, v := range values {
		digests = append(digests, FingerprintString(norm.NFC.String(v)).Hex())
	}
	encoded, err := encode(digests)
	if err != nil {
		return Digest{}, err
	}
	return Fingerprint(encoded), nil
}

// normalize round-trips doc through JSON so that values built in Go (ints,
// typed maps) take the same shape as values decoded from the wire.
func normalize(doc Document) (Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is empty", ErrInvalidDocument)
	}
	data, err := stdjson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return ParseDocument(data)
}

func canonicalValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return norm.NFC.String(val), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, errors.New("non-finite number")
		}
		return val, nil
	case bool:
		return val, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func rawText(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	cv, err := canonicalValue(v)
	if err != nil {
		return "", err
	}
	out, err := encode(cv)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// encode writes v the way JavaScript's JSON.stringify does: UTF-8 text is
// emitted literally (U+2028, U+2029 and <>& included), only quotes,
// backslashes and control characters are escaped, and numbers follow
// Number.prototype.toString.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, fmt.Errorf("canonical encoding: %w", err)
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		return writeCanonicalString(buf, val)
	case float64:
		return writeCanonicalNumber(buf, val)
	case json.OrderedObject:
		buf.WriteByte('{')
		for i, m := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, m.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, m.Value); err != nil {
				return fmt.Errorf("%s: %w", m.Key, err)
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("unsupported type %T", v)
	}
	return nil
}

const lowerHex = "0123456789abcdef"

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				return fmt.Errorf("invalid UTF-8 at byte %d", i)
			}
			buf.WriteString(s[i : i+size])
			i += size
			continue
		}
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if c < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(lowerHex[c>>4])
				buf.WriteByte(lowerHex[c&0xf])
			} else {
				buf.WriteByte(c)
			}
		}
		i++
	}
	buf.WriteByte('"')
	return nil
}

// writeCanonicalNumber prints the shortest round-trip form: plain decimals
// for 1e-6 <= |f| < 1e21, exponent form with an unpadded exponent outside,
// and 0 for negative zero.
func writeCanonicalNumber(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.New("non-finite number")
	}
	if f == 0 {
		buf.WriteByte('0')
		return nil
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	}
	out := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(out, "e")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	buf.WriteString(mantissa + "e" + sign + digits)
	return nil
}
