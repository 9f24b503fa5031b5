package matcher

import (
	"net/http"
	"testing"

	"techprobe/pkg/network"
	"techprobe/pkg/signature"
	"techprobe/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testValidator(t *testing.T) *CrossValidator {
	t.Helper()
	s := signature.NewStore()
	require.NoError(t, s.Load([]signature.Dataset{{Name: "test.json", Data: []byte(testDataset)}}))
	return NewCrossValidator(signature.NewIndex(s, signature.NewCompiler()))
}

func TestExpandEmitsImpliedTechnology(t *testing.T) {
	v := testValidator(t)

	primary := []types.DetectionResult{{
		Name: "WordPress", Confidence: 90, Source: SourceName,
	}}
	derived := v.Expand(primary, 10)

	require.Len(t, derived, 1)
	php := derived[0]
	assert.Equal(t, "PHP", php.Name)
	// 来源置信度减10
	assert.Equal(t, 80, php.Confidence)
	assert.Equal(t, CrossSourceName, php.Source)
	assert.Equal(t, "Programming languages", php.Category)
	require.Len(t, php.Evidence, 1)
	assert.Equal(t, "implied by WordPress", php.Evidence[0].Value)
}

func TestExpandSkipsDirectlyDetected(t *testing.T) {
	v := testValidator(t)

	primary := []types.DetectionResult{
		{Name: "WordPress", Confidence: 90},
		{Name: "php", Confidence: 60}, // 大小写不同也算已检出
	}
	assert.Empty(t, v.Expand(primary, 10))
}

func TestExpandRespectsThreshold(t *testing.T) {
	v := testValidator(t)

	primary := []types.DetectionResult{{Name: "WordPress", Confidence: 15}}
	// 15-10=5 低于阈值10
	assert.Empty(t, v.Expand(primary, 10))
}

func TestExpandFloorsAtZero(t *testing.T) {
	v := testValidator(t)

	primary := []types.DetectionResult{{Name: "WordPress", Confidence: 5}}
	derived := v.Expand(primary, 0)
	require.Len(t, derived, 1)
	assert.Equal(t, 0, derived[0].Confidence)
}

func TestEngineAnalyzeIncludesImplied(t *testing.T) {
	e := testEngine(t)
	// 只有WordPress的证据，PHP应由隐含关系补出
	page := network.ParsePage("http://example.com",
		`<meta name="generator" content="WordPress 6.2"><div class="wp-content"></div>`, http.Header{})

	results := analyze(t, e, page)
	php, ok := results["PHP"]
	require.True(t, ok)
	assert.Equal(t, CrossSourceName, php.Source)
	// WordPress 90 减 10
	assert.Equal(t, 80, php.Confidence)
}
