package anchor

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	brunaContentHash = "0x02989e417b57026a21ddb3571df5aa66af3130485a22c38cc797720f516e8374"
	brunaChipHash    = "0x874c835fe5a157e0b11ccba1ac0d4445ba1e29981d88f6c9848de1611e497cf8"
)

func brunaRecord() Document {
	return Document{
		"cavalo": map[string]any{
			"nome":            "Bruna do Muiraquitã",
			"sexo":            "FEMEA",
			"data_nascimento": "2014-10-31",
			"raca":            "Campolina",
			"microchip":       "982000362646702",
		},
		"registro": map[string]any{
			"tipo":            "DEFINITIVO",
			"numero_registro": "06/027361",
			"situacao":        "ATIVO",
			"data_registro":   "2014-10-31",
		},
		"criacao": map[string]any{
			"criador":      "Gustavo de Marco Turchetti",
			"proprietario": "Gustavo de Marco Turchetti",
			"haras":        "Sítio Muiraquitã",
			"cidade":       "Nepomuceno",
			"estado":       "MG",
		},
		"mensuracao": map[string]any{
			"pelagem":             "LOBUNA",
			"altura_cernelha_m":   1.52,
			"comprimento_corpo_m": 1.54,
			"perimetro_torax_m":   1.80,
			"particularidades":    "Espiga na borda ventral do pescoço (terço caudal). Rodopio na jugular lado direito cranial.",
			"dna_confirmado":      true,
			"veterinario":         "Paulo Sérgio de O. Marius - CRMV MG 3810",
		},
		"genealogia": map[string]any{
			"pai": "Vulcano do Muiraquitã",
			"mae": "Catarina BM",
		},
	}
}

func setField(doc Document, section, field string, v any) Document {
	doc[section].(map[string]any)[field] = v
	return doc
}

func TestCanonicalizeGolden(t *testing.T) {
	out, err := Canonicalize(HorseRecordV1, brunaRecord())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "horse_record_v1", out)
}

func TestCanonicalizeGoldenEscapes(t *testing.T) {
	doc := brunaRecord()
	setField(doc, "mensuracao", "particularidades", "Linha 1\nLinha\t2\b\f\x01\x1f \"aspas\" \\ <b>&</b> fim")
	setField(doc, "mensuracao", "altura_cernelha_m", math.Copysign(0, -1))

	out, err := Canonicalize(HorseRecordV1, doc)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "horse_record_v1_escapes", out)
}

func TestCanonicalizeKeepsNonASCIILiteral(t *testing.T) {
	out, err := Canonicalize(HorseRecordV1, brunaRecord())
	require.NoError(t, err)

	assert.Contains(t, string(out), `"nome":"Bruna do Muiraquitã"`)
	assert.NotContains(t, string(out), `\u00`)
}

func TestEncodeMatchesJSONStringify(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"short escapes", "\b\f\n\r\t", `"\b\f\n\r\t"`},
		{"other controls", "\x00\x01\x1f\x7f", `"\u0000\u0001\u001f` + "\x7f" + `"`},
		{"quote and backslash", `a"b\c`, `"a\"b\\c"`},
		{"html and separators", "<&>\u2028\u2029", "\"<&>\u2028\u2029\""},
		{"accents", "ãé", `"ãé"`},
		{"astral", "🐎", `"🐎"`},
		{"negative zero", math.Copysign(0, -1), "0"},
		{"zero", 0.0, "0"},
		{"integer", 2.0, "2"},
		{"fraction", 1.80, "1.8"},
		{"negative", -2.5, "-2.5"},
		{"small decimal", 0.000001, "0.000001"},
		{"small exponent", 1e-7, "1e-7"},
		{"small mantissa", 1.5e-10, "1.5e-10"},
		{"large decimal", 123456789012345680000.0, "123456789012345680000"},
		{"large exponent", 1e21, "1e+21"},
		{"booleans", []any{true, false}, "[true,false]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := encode(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(out))
		})
	}
}

func TestEncodeRejectsUnencodableValues(t *testing.T) {
	for name, v := range map[string]any{
		"invalid utf-8": "\xff",
		"nan":           math.NaN(),
		"infinity":      math.Inf(1),
		"map":           map[string]any{},
	} {
		_, err := encode(v)
		assert.Error(t, err, name)
	}
}

func TestAnchorKnownRecord(t *testing.T) {
	a, err := Anchor(HorseRecordV1, brunaRecord())
	require.NoError(t, err)

	assert.Equal(t, "horse-record/v1", a.Schema)
	assert.Equal(t, brunaContentHash, a.ContentHash.Hex())
	assert.Equal(t, brunaChipHash, a.SecretFieldHash.Hex())
	assert.NotContains(t, string(a.Canonical), "\n")
	assert.Contains(t, string(a.Canonical), `"perimetro_torax_m":1.8,`)
}

func TestAnchorIgnoresInputKeyOrderAndWhitespace(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "horse_record_shuffled.json"))
	require.NoError(t, err)

	doc, err := ParseDocument(data)
	require.NoError(t, err)

	a, err := Anchor(HorseRecordV1, doc)
	require.NoError(t, err)
	assert.Equal(t, brunaContentHash, a.ContentHash.Hex())
	assert.Equal(t, brunaChipHash, a.SecretFieldHash.Hex())
}

func TestCanonicalizeNormalizesUnicode(t *testing.T) {
	composed, err := Canonicalize(HorseRecordV1, brunaRecord())
	require.NoError(t, err)

	decomposed := setField(brunaRecord(), "criacao", "haras", "Si\u0301tio Muiraquita\u0303")
	out, err := Canonicalize(HorseRecordV1, decomposed)
	require.NoError(t, err)

	assert.Equal(t, string(composed), string(out))
}

func TestCanonicalizeDoesNotEscape(t *testing.T) {
	doc := setField(brunaRecord(), "mensuracao", "particularidades", "<b>&</b> linha\u2028fim")
	out, err := Canonicalize(HorseRecordV1, doc)
	require.NoError(t, err)

	assert.Contains(t, string(out), "\"<b>&</b> linha\u2028fim\"")
	assert.NotContains(t, string(out), `\u2028`)
	assert.NotContains(t, string(out), `\u003c`)
}

func TestCanonicalizeKeepsEscapedBackslashes(t *testing.T) {
	doc := setField(brunaRecord(), "mensuracao", "particularidades", `literal \u2028 text`)
	out, err := Canonicalize(HorseRecordV1, doc)
	require.NoError(t, err)

	assert.Contains(t, string(out), `"literal \\u2028 text"`)
}

func TestCanonicalizeIntegersMatchFloats(t *testing.T) {
	asFloat := setField(brunaRecord(), "mensuracao", "altura_cernelha_m", 2.0)
	asInt := setField(brunaRecord(), "mensuracao", "altura_cernelha_m", 2)

	a, err := Canonicalize(HorseRecordV1, asFloat)
	require.NoError(t, err)
	b, err := Canonicalize(HorseRecordV1, asInt)
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `"altura_cernelha_m":2,`)
}

func TestCanonicalizeRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]func() Document{
		"missing field": func() Document {
			doc := brunaRecord()
			delete(doc["cavalo"].(map[string]any), "raca")
			return doc
		},
		"missing section": func() Document {
			doc := brunaRecord()
			delete(doc, "genealogia")
			return doc
		},
		"unknown field": func() Document {
			return setField(brunaRecord(), "cavalo", "apelido", "Bru")
		},
		"unknown section": func() Document {
			doc := brunaRecord()
			doc["extra"] = map[string]any{}
			return doc
		},
		"number as string": func() Document {
			return setField(brunaRecord(), "mensuracao", "altura_cernelha_m", "1.52")
		},
		"bool as string": func() Document {
			return setField(brunaRecord(), "mensuracao", "dna_confirmado", "true")
		},
		"empty required string": func() Document {
			return setField(brunaRecord(), "cavalo", "nome", "")
		},
		"null value": func() Document {
			return setField(brunaRecord(), "genealogia", "mae", nil)
		},
		"nil document": func() Document {
			return nil
		},
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Canonicalize(HorseRecordV1, build())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestCanonicalizeAllowsEmptyParticularidades(t *testing.T) {
	doc := setField(brunaRecord(), "mensuracao", "particularidades", "")
	out, err := Canonicalize(HorseRecordV1, doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"particularidades":"",`)
}

func TestParseDocumentRejectsNonObjects(t *testing.T) {
	for _, input := range []string{`[]`, `"x"`, `null`, `{`, `42`} {
		_, err := ParseDocument([]byte(input))
		assert.ErrorIs(t, err, ErrInvalidDocument, input)
	}
}

func TestParseDocumentRejectsInvalidUTF8(t *testing.T) {
	valid, err := os.ReadFile(filepath.Join("testdata", "golden", "horse_record_v1.golden"))
	require.NoError(t, err)

	for _, bad := range [][]byte{{0xff}, {0xc3, 0x28}} {
		data := []byte(strings.Replace(string(valid), "Catarina", "Catarina"+string(bad), 1))
		_, err := ParseDocument(data)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	}
}

func TestDistinctRecordsDoNotCollide(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	seen := make(map[Digest]string, 10000)
	for i := 0; i < 10000; i++ {
		doc := brunaRecord()
		setField(doc, "cavalo", "nome", fmt.Sprintf("Cavalo %d-%d", i, rng.Int63()))
		setField(doc, "cavalo", "microchip", fmt.Sprintf("%015d", rng.Int63n(1e15)))
		setField(doc, "mensuracao", "altura_cernelha_m", 1.2+rng.Float64())

		canonical, err := Canonicalize(HorseRecordV1, doc)
		require.NoError(t, err)
		d := Fingerprint(canonical)
		prev, dup := seen[d]
		require.False(t, dup, "collision between %s and %s", prev, canonical)
		seen[d] = string(canonical)
	}
}

func TestSecretFieldHashTracksOnlySensitiveFields(t *testing.T) {
	base, err := HorseRecordV1.SecretFieldHash(brunaRecord())
	require.NoError(t, err)

	renamed, err := HorseRecordV1.SecretFieldHash(setField(brunaRecord(), "cavalo", "nome", "Outra"))
	require.NoError(t, err)
	assert.Equal(t, base, renamed)

	rechipped, err := HorseRecordV1.SecretFieldHash(setField(brunaRecord(), "cavalo", "microchip", "982000362646703"))
	require.NoError(t, err)
	assert.NotEqual(t, base, rechipped)

	direct, err := HorseRecordV1.HashSecrets("982000362646702")
	require.NoError(t, err)
	assert.Equal(t, base, direct)
}

func TestHashSecretsMultipleSelectors(t *testing.T) {
	s := &Schema{
		Version:   "test/v1",
		Sections:  HorseRecordV1.Sections,
		Sensitive: []Selector{"cavalo.microchip", "registro.numero_registro"},
	}
	got, err := s.HashSecrets("982000362646702", "06/027361")
	require.NoError(t, err)

	want := FingerprintString(`["` + brunaChipHash + `","` + FingerprintString("06/027361").Hex() + `"]`)
	assert.Equal(t, want, got)

	fromDoc, err := s.SecretFieldHash(brunaRecord())
	require.NoError(t, err)
	assert.Equal(t, got, fromDoc)

	_, err = s.HashSecrets("only-one")
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestLookupSchema(t *testing.T) {
	s, err := LookupSchema(DefaultSchemaVersion)
	require.NoError(t, err)
	assert.Same(t, HorseRecordV1, s)
	assert.Contains(t, SchemaVersions(), DefaultSchemaVersion)

	_, err = LookupSchema("horse-record/v0")
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestJSONSchemaIsClosed(t *testing.T) {
	js := HorseRecordV1.JSONSchema()
	assert.Equal(t, false, js["additionalProperties"])
	required := js["required"].([]any)
	assert.Len(t, required, len(HorseRecordV1.Sections))

	props := js["properties"].(map[string]any)
	cavalo := props["cavalo"].(map[string]any)
	assert.Equal(t, false, cavalo["additionalProperties"])
	nome := cavalo["properties"].(map[string]any)["nome"].(map[string]any)
	assert.Equal(t, "string", nome["type"])
	assert.Equal(t, 1, nome["minLength"])
	assert.True(t, strings.HasPrefix(js["$schema"].(string), "http://json-schema.org/draft-07"))
}
