package utils

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string", "", nil},
		{"whitespace only", "  ,  , ", nil},
		{"single value", "RUN_QUEUED", []string{"RUN_QUEUED"}},
		{"varied spacing", "RUN_QUEUED,  RUN_FAILED , EPISODE_COMPLETED", []string{"RUN_QUEUED", "RUN_FAILED", "EPISODE_COMPLETED"}},
		{"trailing comma", "RUN_COMPLETED,", []string{"RUN_COMPLETED"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCSV(tt.input))
		})
	}
}

func TestParseCSV_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		input := rapid.StringMatching(`[ A-Z_,]{0,40}`).Draw(t, "input")
		first := ParseCSV(input)
		second := ParseCSV(strings.Join(first, ","))
		assert.Equal(t, first, second)
		for _, v := range first {
			assert.NotEmpty(t, v)
			assert.Equal(t, strings.TrimSpace(v), v)
		}
	})
}

func TestOperationTimer_WarnsWhenSlow(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	stop := OperationTimer("train", time.Nanosecond, log)
	time.Sleep(time.Millisecond)
	d := stop()

	assert.GreaterOrEqual(t, d, time.Millisecond)
	assert.Contains(t, buf.String(), "Slow operation detected")

	buf.Reset()
	OperationTimer("train", 0, log)()
	assert.NotContains(t, buf.String(), "Slow operation detected")
}

func TestMeasureDBQuery(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	MeasureDBQuery("complete_run", log)(12)
	assert.Contains(t, buf.String(), `"rows_affected":12`)
	assert.Contains(t, buf.String(), `"query":"complete_run"`)
}
