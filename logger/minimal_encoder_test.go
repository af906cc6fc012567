package logger

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripANSI removes ANSI color codes from a string for testing
func stripANSI(str string) string {
	return ansiRegex.ReplaceAllString(str, "")
}

func encode(t *testing.T, enc *minimalEncoder, ent zapcore.Entry, fields ...zapcore.Field) string {
	t.Helper()
	buf, err := enc.EncodeEntry(ent, fields)
	require.NoError(t, err)
	defer buf.Free()
	return buf.String()
}

// The minimal encoder must never silently discard log fields.
func TestMinimalEncoderNeverDiscardsFields(t *testing.T) {
	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Now(),
		LoggerName: "prompt",
		Message:    "Testing field preservation",
	}

	testFields := []struct {
		field    zapcore.Field
		mustFind string
	}{
		{zap.String(FieldPrompt, "a cat.swap(dog)"), "prompt=a cat.swap(dog)"},
		{zap.String(FieldOperator, "blend"), "operator=blend"},
		{zap.Bool("normalize", true), "normalize=true"},
		{zap.Float64("weight", 1.21), "weight=1.21"},
		{zap.Float32("s_end", 0.25), "s_end=0.25"},
		{zap.Int(FieldFragmentCount, 3), "fragment_count=3"},
		{zap.Int64(FieldTokenCount, 77), "token_count=77"},
		{zap.Strings("tags", []string{"portrait", "oil"}), "tags="},
		{zap.String("field.with.dots", "x"), "field.with.dots=x"},
		{zap.Error(nil), ""},
		{zap.String(FieldError, "mismatched prompt/weight counts"), "error=mismatched prompt/weight counts"},
		{zap.String(FieldRequestID, "9b2e"), "request_id=9b2e"},
		{zap.Int(FieldDurationMS, 4), "duration_ms=4ms"},
		{zap.Duration("elapsed", 1500*time.Millisecond), "elapsed=1.5s"},
	}

	var allFields []zapcore.Field
	for _, tf := range testFields {
		allFields = append(allFields, tf.field)
	}

	for _, color := range []bool{true, false} {
		out := stripANSI(encode(t, newMinimalEncoder(color), entry, allFields...))
		for _, tf := range testFields {
			if tf.mustFind != "" {
				assert.Contains(t, out, tf.mustFind, "field silently discarded (color=%v)", color)
			}
		}
	}
}

func TestMinimalEncoderLayout(t *testing.T) {
	enc := newMinimalEncoder(false)
	ts := time.Date(2026, 3, 1, 13, 4, 35, 0, time.UTC)

	info := encode(t, enc, zapcore.Entry{Level: zapcore.InfoLevel, Time: ts, LoggerName: "server.ws", Message: "client connected"})
	assert.Equal(t, "13:04:35  s.ws  client connected\n", info)

	warn := encode(t, enc, zapcore.Entry{Level: zapcore.WarnLevel, Time: ts, Message: "zero-sum weights"}, zap.Int(FieldCount, 2))
	assert.Equal(t, "13:04:35  WARN  zero-sum weights  count=2\n", warn)

	plain := encode(t, enc, zapcore.Entry{Level: zapcore.ErrorLevel, Time: ts, Message: "x"})
	assert.NotContains(t, plain, "\x1b[")
	assert.True(t, strings.Contains(plain, "ERROR"))
}

func TestMinimalEncoderKeepsContextFields(t *testing.T) {
	enc := newMinimalEncoder(false)
	zap.String(FieldRequestID, "r1").AddTo(enc)

	clone := enc.Clone().(*minimalEncoder)
	out := encode(t, clone, zapcore.Entry{Time: time.Now(), Message: "parsed"}, zap.Int(FieldPartCount, 2))
	assert.Contains(t, out, "request_id=r1 part_count=2")
}

func TestAbbreviateName(t *testing.T) {
	assert.Equal(t, "server", abbreviateName("server"))
	assert.Equal(t, "s.ws", abbreviateName("server.ws"))
	assert.Equal(t, "c.tokens.layout", abbreviateName("conditioning.tokens.layout"))
}
