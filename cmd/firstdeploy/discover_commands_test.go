package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ZaphyrRobin/firstdeploy/service/discovery"
	"github.com/itchyny/gojq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatResultLine(t *testing.T) {
	result := &discovery.Result{
		UnixTimestamp: 1714099200,
		UTCTime:       time.Unix(1714099200, 0).UTC(),
	}
	assert.Equal(t,
		"First Deployment Timestamp: 1714099200, 2024-04-26 02:40:00 UTC",
		formatResultLine(result))
}

func TestFormatResultLine_Failure(t *testing.T) {
	assert.Equal(t, "First Deployment Timestamp: None, None", formatResultLine(nil))
}

func TestDiscoverOutput_JSONShape(t *testing.T) {
	ts := int64(1714099200)
	utc := "2024-04-26 02:40:00"
	out := discoverOutput{
		ProgramID:     "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
		Network:       "mainnet",
		UnixTimestamp: &ts,
		UTCDatetime:   &utc,
	}

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"program_id": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
		"network": "mainnet",
		"unix_timestamp": 1714099200,
		"utc_datetime": "2024-04-26 02:40:00"
	}`, string(data))
}

func TestDiscoverOutput_FailureRendersNulls(t *testing.T) {
	out := discoverOutput{ProgramID: "abc", Network: "devnet"}

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"program_id": "abc",
		"network": "devnet",
		"unix_timestamp": null,
		"utc_datetime": null
	}`, string(data))
}

func TestJQFilterOverDiscoverOutput(t *testing.T) {
	ts := int64(1714099200)
	utc := "2024-04-26 02:40:00"
	out := discoverOutput{
		ProgramID:     "abc",
		Network:       "mainnet",
		UnixTimestamp: &ts,
		UTCDatetime:   &utc,
	}

	tests := []struct {
		name     string
		jqFilter string
		expected interface{}
	}{
		{
			name:     "extract timestamp",
			jqFilter: ".unix_timestamp",
			expected: float64(1714099200),
		},
		{
			name:     "extract network",
			jqFilter: ".network",
			expected: "mainnet",
		},
		{
			name:     "boolean comparison",
			jqFilter: `.network == "mainnet"`,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, err := gojq.Parse(tt.jqFilter)
			require.NoError(t, err)
			code, err := gojq.Compile(query)
			require.NoError(t, err)

			data, err := json.Marshal(out)
			require.NoError(t, err)
			var input interface{}
			require.NoError(t, json.Unmarshal(data, &input))

			iter := code.Run(input)
			v, ok := iter.Next()
			require.True(t, ok)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestPrintFiltered_InvalidExpression(t *testing.T) {
	_, err := gojq.Parse("..invalid[[")
	require.Error(t, err)
}
