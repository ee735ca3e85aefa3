package eventstream

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldershare/sharer/domain/port"
)

func TestEmitPlain_FormatsTagAndPayload(t *testing.T) {
	sink := NewMemorySink()
	e := New(sink)

	require.NoError(t, e.EmitPlain(port.TagProgress, "Processed 1 / 2 (50%)"))
	assert.Equal(t, []string{"PROGRESS: Processed 1 / 2 (50%)"}, sink.Snapshot())
}

func TestEmitJSON_SanitizesControlCharacters(t *testing.T) {
	sink := NewMemorySink()
	e := New(sink)

	require.NoError(t, e.EmitJSON(port.TagResultsUpdate, map[string]string{"message": "bad\x00value\x07"}))

	line := sink.Snapshot()[0]
	assert.True(t, strings.HasPrefix(line, "RESULTS_UPDATE: "))
	assert.NotContains(t, line, "\x00")
	assert.NotContains(t, line, "\x07")
}

func TestEmitJSON_TruncatesLongFreeText(t *testing.T) {
	sink := NewMemorySink()
	e := New(sink)

	long := strings.Repeat("a", 500)
	require.NoError(t, e.EmitJSON(port.TagError, map[string]string{"message": long}))

	line := sink.Snapshot()[0]
	assert.LessOrEqual(t, len(line), len("ERROR: ")+len(`{"message":""}`)+maxFreeTextLen)
}

func TestEmitJSON_OversizeFallsBackToError(t *testing.T) {
	sink := NewMemorySink()
	e := New(sink)

	huge := make(map[string]string, 5000)
	for i := 0; i < 5000; i++ {
		huge[fmt.Sprintf("%s%d", strings.Repeat("k", 10), i)] = strings.Repeat("x", 50)
	}
	require.NoError(t, e.EmitJSON(port.TagDashboard, huge))

	line := sink.Snapshot()[0]
	assert.Contains(t, line, "Data too large")
}

func TestSanitize_StripsZeroWidthAndTruncates(t *testing.T) {
	input := "hello​world" + strings.Repeat("z", 200)
	out := Sanitize(input)
	assert.NotContains(t, out, "​")
	assert.LessOrEqual(t, len([]rune(out)), maxFreeTextLen)
}
