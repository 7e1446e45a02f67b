package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFieldCompleteDocument(t *testing.T) {
	got, ok := ExtractField(`{"message":"Hello","metadata":{}}`, "message")
	require.True(t, ok)
	assert.Equal(t, "Hello", got)
}

func TestExtractFieldAbsentUntilVisible(t *testing.T) {
	for _, buf := range []string{
		"",
		"{",
		`{"mess`,
		`{"message"`,
		`{"message":`,
		`{"message": `,
	} {
		_, ok := ExtractField(buf, "message")
		assert.False(t, ok, "buffer %q should not expose the field yet", buf)
	}
}

func TestExtractFieldPartialValue(t *testing.T) {
	got, ok := ExtractField(`{"message":"Hel`, "message")
	require.True(t, ok)
	assert.Equal(t, "Hel", got)

	got, ok = ExtractField(`{"message":"Hello","meta`, "message")
	require.True(t, ok)
	assert.Equal(t, "Hello", got)
}

func TestExtractFieldDecodesEscapes(t *testing.T) {
	got, ok := ExtractField(`{"message":"a\nb"}`, "message")
	require.True(t, ok)
	assert.Equal(t, "a\nb", got)

	got, ok = ExtractField(`{"message":"tab\there \"quoted\" back\\slash"}`, "message")
	require.True(t, ok)
	assert.Equal(t, "tab\there \"quoted\" back\\slash", got)
}

func TestExtractFieldWithholdsTrailingBackslash(t *testing.T) {
	// A buffer cut mid-escape must not guess the next character.
	got, ok := ExtractField(`{"message":"a\`, "message")
	require.True(t, ok)
	assert.Equal(t, "a", got)

	// Once the escape's second half arrives the character appears.
	got, ok = ExtractField(`{"message":"a\n`, "message")
	require.True(t, ok)
	assert.Equal(t, "a\n", got)
}

func TestExtractFieldKeepsUnknownEscapesLiterally(t *testing.T) {
	// \A is not a JSON escape; the backslash is preserved rather than erroring.
	got, ok := ExtractField(`{"message":"a\Ab`, "message")
	require.True(t, ok)
	assert.Equal(t, `a\Ab`, got)
}

// An earlier field whose value is the literal string "message" must not
// shadow the real key; the scan keeps going and the value still streams
// incrementally.
func TestExtractFieldSkipsFieldNameAppearingAsValue(t *testing.T) {
	got, ok := ExtractField(`{"kind":"message","message":"Hel`, "message")
	require.True(t, ok)
	assert.Equal(t, "Hel", got)

	// While the decoy occurrence cannot be classified yet, the field is
	// conservatively absent rather than misread.
	_, ok = ExtractField(`{"kind":"message"`, "message")
	assert.False(t, ok)
}

func TestExtractFieldToleratesWhitespaceAroundColon(t *testing.T) {
	got, ok := ExtractField("{\"message\" : \n\t\"hi", "message")
	require.True(t, ok)
	assert.Equal(t, "hi", got)
}

func TestExtractFieldStopsAtClosingQuote(t *testing.T) {
	got, ok := ExtractField(`{"message":"done","shouldGenerateImage":true}`, "message")
	require.True(t, ok)
	assert.Equal(t, "done", got)
}

// Growing prefixes of one eventual document must yield prefix-consistent,
// non-shrinking values.
func TestExtractFieldMonotonicExtension(t *testing.T) {
	docs := []struct {
		name string
		doc  string
		want string
	}{
		{"plain", `{"message":"Hello, world","metadata":{"type":"info"}}`, "Hello, world"},
		{"escapes", `{"message":"line one\nline \"two\" \\ end","metadata":{}}`, "line one\nline \"two\" \\ end"},
		{"field not first", `{"metadata":{"type":"info"},"message":"after metadata"}`, "after metadata"},
		{"name as earlier value", `{"kind":"message","message":"real value"}`, "real value"},
	}

	for _, tc := range docs {
		t.Run(tc.name, func(t *testing.T) {
			prev := ""
			for i := 0; i <= len(tc.doc); i++ {
				got, ok := ExtractField(tc.doc[:i], "message")
				if !ok {
					continue
				}
				assert.True(t, strings.HasPrefix(got, prev),
					"prefix %d: %q does not extend %q", i, got, prev)
				assert.True(t, strings.HasPrefix(tc.want, got),
					"prefix %d: %q is not a prefix of the final value", i, got)
				if len(got) > len(prev) {
					prev = got
				}
			}
			full, ok := ExtractField(tc.doc, "message")
			require.True(t, ok)
			assert.Equal(t, tc.want, full)
		})
	}
}

func TestExtractFieldPureFunction(t *testing.T) {
	buf := `{"message":"same`
	a, _ := ExtractField(buf, "message")
	b, _ := ExtractField(buf, "message")
	assert.Equal(t, a, b)
}
