package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRules = `
rules:
  - name: Shiro
    category: Security
    confidence: 85
    expr: '"rememberme" in cookies || cookies.exists(k, k.contains("shiro"))'
  - name: ThinkPHP
    category: Web frameworks
    expr: 'body.contains("thinkphp") || headers["x-powered-by"].contains("ThinkPHP")'
  - name: BadRule
    expr: 'this is not valid cel ((('
`

func TestParseRules(t *testing.T) {
	parsed, err := Parse([]byte(sampleRules))
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	assert.Equal(t, 85, parsed[0].Confidence)
	// 缺省置信度
	assert.Equal(t, defaultRuleConfidence, parsed[1].Confidence)
}

func TestParseRejectsIncompleteRule(t *testing.T) {
	_, err := Parse([]byte("rules:\n  - name: OnlyName\n"))
	require.Error(t, err)
}

func TestEvaluatorSkipsBrokenRules(t *testing.T) {
	parsed, err := Parse([]byte(sampleRules))
	require.NoError(t, err)
	ev, err := NewEvaluator(parsed)
	require.NoError(t, err)
	// 非法表达式被跳过，其余正常编译
	assert.Equal(t, 2, ev.Size())
}

func TestEvaluateCookieRule(t *testing.T) {
	parsed, _ := Parse([]byte(sampleRules))
	ev, err := NewEvaluator(parsed)
	require.NoError(t, err)

	hits := ev.Evaluate(Input{
		URL:     "http://example.com",
		Status:  200,
		Cookies: map[string]string{"rememberMe": "deleteMe"},
		Headers: map[string]string{},
	})
	// cookie名大小写不做归一化，rememberMe不等于rememberme
	assert.Empty(t, hits)

	hits = ev.Evaluate(Input{
		URL:     "http://example.com",
		Status:  200,
		Cookies: map[string]string{"rememberme": "deleteMe"},
		Headers: map[string]string{},
	})
	require.Len(t, hits, 1)
	assert.Equal(t, "Shiro", hits[0].Name)
}

func TestEvaluateHeaderRuleLowercased(t *testing.T) {
	parsed, _ := Parse([]byte(sampleRules))
	ev, err := NewEvaluator(parsed)
	require.NoError(t, err)

	hits := ev.Evaluate(Input{
		Headers: map[string]string{"X-Powered-By": "ThinkPHP/6.0"},
		Cookies: map[string]string{},
	})
	require.Len(t, hits, 1)
	assert.Equal(t, "ThinkPHP", hits[0].Name)
}
