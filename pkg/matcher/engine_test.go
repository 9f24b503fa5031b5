package matcher

import (
	"net/http"
	"testing"

	"techprobe/pkg/network"
	"techprobe/pkg/signature"
	"techprobe/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

const testDataset = `{
  "categories": {"1": "CMS", "22": "Web servers", "27": "Programming languages", "59": "JavaScript libraries"},
  "technologies": {
    "Nginx": {
      "cats": [22],
      "headers": {"Server": "nginx(?:/([\\d.]+))?;confidence:70;version:\\1"},
      "html": ["nginx/([\\d.]+);confidence:20;version:\\1"]
    },
    "WordPress": {
      "cats": [1],
      "meta": {"generator": "WordPress(?: ([\\d.]+))?;version:\\1"},
      "html": ["wp-content;confidence:40", "wp-includes;confidence:30"],
      "scripts": ["wp-content;confidence:40"],
      "implies": ["PHP"]
    },
    "PHP": {
      "cats": [27],
      "headers": {"X-Powered-By": "php;confidence:90"}
    },
    "jQuery": {
      "cats": [59],
      "scripts": ["jquery[.-]([\\d.]+)[^/]*\\.js;version:\\1"]
    },
    "Stackish": {
      "html": ["stack-a;confidence:60", "stack-b;confidence:50", "stack-c;confidence:20"]
    }
  }
}`

func testEngine(t *testing.T) *Engine {
	t.Helper()
	s := signature.NewStore()
	require.NoError(t, s.Load([]signature.Dataset{{Name: "test.json", Data: []byte(testDataset)}}))
	return NewEngine(signature.NewIndex(s, signature.NewCompiler()))
}

func analyze(t *testing.T, e *Engine, page *network.PageData) map[string]types.DetectionResult {
	t.Helper()
	results, err := e.Analyze(context.Background(), page.URL, page, types.DefaultAnalyzeOptions())
	require.NoError(t, err)
	byName := make(map[string]types.DetectionResult, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	return byName
}

func TestAnalyzeHeaderVersionExtraction(t *testing.T) {
	e := testEngine(t)
	header := http.Header{}
	header.Set("Server", "nginx/1.18.0")
	page := network.ParsePage("http://example.com", "", header)

	results := analyze(t, e, page)
	nginx, ok := results["Nginx"]
	require.True(t, ok)
	assert.Equal(t, 70, nginx.Confidence)
	assert.Equal(t, []string{"1.18.0"}, nginx.Versions)
	assert.Equal(t, "Web servers", nginx.Category)
	assert.Equal(t, SourceName, nginx.Source)
	require.Len(t, nginx.Evidence, 1)
	assert.Equal(t, "headers", nginx.Evidence[0].Field)
	assert.Equal(t, "1.18.0", nginx.Evidence[0].Version)
}

func TestAnalyzeCollectsVersionsAcrossPatterns(t *testing.T) {
	e := testEngine(t)
	header := http.Header{}
	header.Set("Server", "nginx/1.18.0")
	// 响应头与页面正文给出不同版本号，两个都进入版本集合
	page := network.ParsePage("http://example.com", "powered by nginx/1.25.3", header)

	results := analyze(t, e, page)
	nginx, ok := results["Nginx"]
	require.True(t, ok)
	assert.Equal(t, []string{"1.18.0", "1.25.3"}, nginx.Versions)
	assert.Equal(t, 90, nginx.Confidence)
	assert.Len(t, nginx.Evidence, 2)
}

func TestAnalyzeVersionSetDeduplicated(t *testing.T) {
	e := testEngine(t)
	header := http.Header{}
	header.Set("Server", "nginx/1.18.0")
	// 两条模式提取到同一版本号，集合只保留一份
	page := network.ParsePage("http://example.com", "powered by nginx/1.18.0", header)

	results := analyze(t, e, page)
	nginx, ok := results["Nginx"]
	require.True(t, ok)
	assert.Equal(t, []string{"1.18.0"}, nginx.Versions)
	assert.Len(t, nginx.Evidence, 2)
}

func TestAnalyzeAdditiveConfidence(t *testing.T) {
	e := testEngine(t)
	page := network.ParsePage("http://example.com",
		`<div class="wp-content"></div><script src="/wp-includes/a.js"></script>`, http.Header{})

	results := analyze(t, e, page)
	wp, ok := results["WordPress"]
	require.True(t, ok)
	// html两条模式各计一次：40+30
	assert.Equal(t, 70, wp.Confidence)
	assert.Len(t, wp.Evidence, 2)
}

func TestAnalyzeConfidenceClampedAt100(t *testing.T) {
	e := testEngine(t)
	page := network.ParsePage("http://example.com", "stack-a stack-b stack-c", http.Header{})

	results := analyze(t, e, page)
	st, ok := results["Stackish"]
	require.True(t, ok)
	// 60+50+20=130，发布时封顶100
	assert.Equal(t, 100, st.Confidence)
	// 证据保留全部三条
	assert.Len(t, st.Evidence, 3)
}

func TestAnalyzeSamePatternCountedOnce(t *testing.T) {
	e := testEngine(t)
	// wp-content同时出现在html与scripts字段，同一(技术,模式)对只累计一次
	page := network.ParsePage("http://example.com",
		`<p>wp-content wp-content wp-content</p><script src="/wp-content/a.js"></script>`, http.Header{})

	results := analyze(t, e, page)
	wp, ok := results["WordPress"]
	require.True(t, ok)
	assert.Equal(t, 40, wp.Confidence)
	assert.Len(t, wp.Evidence, 1)
}

func TestAnalyzeScriptVersionExtraction(t *testing.T) {
	e := testEngine(t)
	page := network.ParsePage("http://example.com",
		`<script src="/static/jquery-3.6.0.min.js"></script>`, http.Header{})

	results := analyze(t, e, page)
	jq, ok := results["jQuery"]
	require.True(t, ok)
	assert.Equal(t, []string{"3.6.0"}, jq.Versions)
	assert.Equal(t, signature.DefaultConfidence, jq.Confidence)
}

func TestAnalyzeThresholdFiltersWeakHits(t *testing.T) {
	e := testEngine(t)
	page := network.ParsePage("http://example.com", "stack-c", http.Header{})

	opts := types.DefaultAnalyzeOptions()
	opts.MinConfidence = 30
	results, err := e.Analyze(context.Background(), page.URL, page, opts)
	require.NoError(t, err)
	// 20分低于阈值30，不发布
	for _, r := range results {
		assert.NotEqual(t, "Stackish", r.Name)
	}
}

func TestAnalyzeMetaGeneratorEndToEnd(t *testing.T) {
	e := testEngine(t)
	header := http.Header{}
	header.Set("X-Powered-By", "PHP/8.1.2")
	page := network.ParsePage("http://example.com",
		`<meta name="generator" content="WordPress 6.2"><div class="wp-content"></div>`, header)

	results := analyze(t, e, page)

	wp, ok := results["WordPress"]
	require.True(t, ok)
	assert.Equal(t, []string{"6.2"}, wp.Versions)
	assert.Equal(t, "CMS", wp.Category)
	// meta 50 + html 40
	assert.Equal(t, 90, wp.Confidence)

	php, ok := results["PHP"]
	require.True(t, ok)
	// 直接命中优先于隐含推导
	assert.Equal(t, SourceName, php.Source)
	assert.Equal(t, 90, php.Confidence)
}

func TestAnalyzeNilPage(t *testing.T) {
	e := testEngine(t)
	results, err := e.Analyze(context.Background(), "http://example.com", nil, types.DefaultAnalyzeOptions())
	require.NoError(t, err)
	assert.Empty(t, results)
}
