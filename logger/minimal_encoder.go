package logger

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"

	colorTime      = "\x1b[38;5;107m" // muted green
	colorComponent = "\x1b[38;5;208m" // warm orange
	colorMessage   = "\x1b[38;5;223m" // soft beige
	colorKey       = "\x1b[38;5;245m" // grey
	colorID        = "\x1b[38;5;109m" // blue-green
	colorNumber    = "\x1b[38;5;108m" // bright green
	colorWarn      = "\x1b[38;5;179m"
	colorWarnBg    = "\x1b[48;5;58m"
	colorError     = "\x1b[38;5;167m"
	colorErrorBg   = "\x1b[48;5;52m"
)

var bufferPool = buffer.NewPool()

// minimalEncoder implements a calm, compact console encoder.
// Format: "13:04:35  WARN  s.parse  prompt rejected  request_id=1f3c… operator=blend"
type minimalEncoder struct {
	zapcore.Encoder // Embed a base encoder for field serialization
	color           bool
	context         []zapcore.Field
}

func newMinimalEncoder(color bool) *minimalEncoder {
	// Create a base JSON encoder for field serialization (internal use only)
	baseEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	return &minimalEncoder{
		Encoder: baseEncoder,
		color:   color,
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{
		Encoder: enc.Encoder.Clone(),
		color:   enc.color,
		context: append([]zapcore.Field(nil), enc.context...),
	}
}

// AddString and friends are called by Logger.With; keep those fields for every entry
func (enc *minimalEncoder) AddString(key, value string) {
	enc.context = append(enc.context, zap.String(key, value))
}

func (enc *minimalEncoder) AddInt64(key string, value int64) {
	enc.context = append(enc.context, zap.Int64(key, value))
}

func (enc *minimalEncoder) AddBool(key string, value bool) {
	enc.context = append(enc.context, zap.Bool(key, value))
}

func (enc *minimalEncoder) AddFloat64(key string, value float64) {
	enc.context = append(enc.context, zap.Float64(key, value))
}

func (enc *minimalEncoder) paint(color, s string) string {
	if !enc.color || s == "" {
		return s
	}
	return color + s + colorReset
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := bufferPool.Get()

	final.AppendString(enc.paint(colorTime, ent.Time.Format("15:04:05")))

	// Level: only show for WARN/ERROR and above
	if lvl := enc.levelString(ent.Level); lvl != "" {
		final.AppendString("  ")
		final.AppendString(lvl)
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(enc.paint(colorComponent, abbreviateName(ent.LoggerName)))
	}

	final.AppendString("  ")
	final.AppendString(enc.paint(colorMessage, ent.Message))

	all := fields
	if len(enc.context) > 0 {
		all = append(append([]zapcore.Field(nil), enc.context...), fields...)
	}
	if rendered := enc.renderFields(all); rendered != "" {
		final.AppendString("  ")
		final.AppendString(rendered)
	}

	final.AppendString("\n")
	return final, nil
}

// levelString returns bold + colored + background for WARN/ERROR
func (enc *minimalEncoder) levelString(level zapcore.Level) string {
	switch {
	case level < zapcore.WarnLevel:
		return ""
	case !enc.color:
		return level.CapitalString()
	case level == zapcore.WarnLevel:
		return colorBold + colorWarnBg + colorWarn + "WARN" + colorReset
	default:
		return colorBold + colorErrorBg + colorError + level.CapitalString() + colorReset
	}
}

// abbreviateName shortens component names: server -> server, server.ws -> s.ws
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 && parts[0] != "" {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

// getFieldValue extracts the value from a zap field, handling different field types
func getFieldValue(field zapcore.Field) string {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", field.Integer)
	case zapcore.BoolType:
		return fmt.Sprintf("%t", field.Integer == 1)
	case zapcore.Float64Type:
		return fmt.Sprintf("%g", math.Float64frombits(uint64(field.Integer)))
	case zapcore.Float32Type:
		return fmt.Sprintf("%g", math.Float32frombits(uint32(field.Integer)))
	case zapcore.DurationType:
		return time.Duration(field.Integer).String()
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok && err != nil {
			return err.Error()
		}
		return ""
	case zapcore.SkipType:
		return ""
	}

	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface)
	}
	return ""
}

// renderFields writes every field as key=value; ids and numbers get their own colors.
// Fields are never dropped.
func (enc *minimalEncoder) renderFields(fields []zapcore.Field) string {
	var parts []string
	for _, field := range fields {
		val := getFieldValue(field)
		if val == "" && field.Type != zapcore.StringType {
			continue
		}

		switch field.Key {
		case FieldRequestID, FieldClientID:
			val = enc.paint(colorID, val)
		case FieldDurationMS:
			val = enc.paint(colorNumber, val) + "ms"
		case FieldFragmentCount, FieldPartCount, FieldTokenCount, FieldCount, FieldStatus:
			val = enc.paint(colorNumber, val)
		}
		parts = append(parts, enc.paint(colorKey, field.Key+"=")+val)
	}
	return strings.Join(parts, " ")
}
