package entity

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadataNumber(t *testing.T) {
	m := Metadata{
		"float":   2500.5,
		"int":     3,
		"json":    json.Number("42"),
		"string":  "17.25",
		"text":    "lots",
		"nan":     "NaN",
		"inf":     "Inf",
		"neg_inf": math.Inf(-1),
		"raw_nan": math.NaN(),
		"nil":     nil,
	}

	for key, want := range map[string]float64{"float": 2500.5, "int": 3, "json": 42, "string": 17.25} {
		got, ok := m.Number(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}

	for _, key := range []string{"text", "nan", "inf", "neg_inf", "raw_nan", "nil", "missing"} {
		_, ok := m.Number(key)
		assert.False(t, ok, key)
	}
}
