package engines

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const whatwebArrayOutput = `[{"target":"http://example.com","http_status":200,"plugins":{
  "WordPress":{"version":["6.2"]},
  "Title":{"string":["Example"]},
  "HTTPServer":{"string":["nginx"]},
  "jQuery":{"version":["3.6.0"],"string":["jquery-3.6.0.min.js"]}
}}]`

const whatwebLineOutput = `{"target":"http://a.com","plugins":{"Drupal":{}}}
{"target":"http://b.com","plugins":{"Joomla":{"version":["4"]}}}
`

func TestParseWhatWebArrayOutput(t *testing.T) {
	results := parseWhatWebOutput([]byte(whatwebArrayOutput))

	byName := map[string]int{}
	for _, r := range results {
		byName[r.Name] = r.Confidence
	}
	// 信息型插件被跳过
	assert.NotContains(t, byName, "Title")
	assert.NotContains(t, byName, "HTTPServer")
	assert.Contains(t, byName, "WordPress")
	assert.Contains(t, byName, "jQuery")

	for _, r := range results {
		assert.Equal(t, whatwebConfidence, r.Confidence)
		assert.Equal(t, "whatweb", r.Source)
		if r.Name == "jQuery" {
			assert.Equal(t, []string{"3.6.0"}, r.Versions)
			require.Len(t, r.Evidence, 1)
			assert.Equal(t, "jquery-3.6.0.min.js", r.Evidence[0].Value)
			assert.Equal(t, "3.6.0", r.Evidence[0].Version)
		}
	}
}

func TestParseWhatWebLineOutput(t *testing.T) {
	results := parseWhatWebOutput([]byte(whatwebLineOutput))
	require.Len(t, results, 2)
}

func TestParseWhatWebGarbage(t *testing.T) {
	assert.Empty(t, parseWhatWebOutput([]byte("whatweb: command exploded")))
}

func TestWhatWebUnavailableWithoutBinary(t *testing.T) {
	s := &WhatWebSource{}
	assert.False(t, s.Available())
}
