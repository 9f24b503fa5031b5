package runner

import (
	"testing"

	"techprobe/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultTestOpts() types.AnalyzeOptions {
	opts := types.DefaultAnalyzeOptions()
	return opts
}

func TestAggregateDedupCaseInsensitive(t *testing.T) {
	raw := []types.DetectionResult{
		{Name: "Nginx", Confidence: 70, Source: "dataset", Versions: []string{"1.18.0"},
			Evidence: []types.Evidence{{Field: "headers", Pattern: "nginx"}}},
		{Name: "nginx", Confidence: 80, Source: "wappalyzer",
			Evidence: []types.Evidence{{Field: "headers", Pattern: "Server"}}},
	}

	results, _, _ := Aggregate(raw, defaultTestOpts())
	require.Len(t, results, 1)

	r := results[0]
	// 高置信度记录为主，证据与来源合并，版本集合保留
	assert.Equal(t, 80, r.Confidence)
	assert.Equal(t, []string{"1.18.0"}, r.Versions)
	assert.Len(t, r.Evidence, 2)
	assert.ElementsMatch(t, []string{"dataset", "wappalyzer"}, r.Sources)
}

func TestAggregateVersionsUnion(t *testing.T) {
	raw := []types.DetectionResult{
		{Name: "Nginx", Confidence: 70, Source: "dataset", Versions: []string{"1.18.0"}},
		{Name: "nginx", Confidence: 80, Source: "wappalyzer", Versions: []string{"1.25.3", "1.18.0"}},
	}

	results, _, _ := Aggregate(raw, defaultTestOpts())
	require.Len(t, results, 1)
	// 不同来源的版本号取并集去重，不丢弃低置信度记录的版本
	assert.Equal(t, []string{"1.18.0", "1.25.3"}, results[0].Versions)
}

func TestAggregateSortAndTruncate(t *testing.T) {
	raw := []types.DetectionResult{
		{Name: "A", Confidence: 30, Source: "dataset"},
		{Name: "B", Confidence: 90, Source: "dataset"},
		{Name: "C", Confidence: 60, Source: "dataset"},
	}

	opts := defaultTestOpts()
	opts.MaxResults = 2
	results, _, _ := Aggregate(raw, opts)

	require.Len(t, results, 2)
	assert.Equal(t, "B", results[0].Name)
	assert.Equal(t, "C", results[1].Name)
}

func TestAggregateConfidenceThreshold(t *testing.T) {
	raw := []types.DetectionResult{
		{Name: "Kept", Confidence: 50, Source: "dataset"},
		{Name: "Dropped", Confidence: 5, Source: "dataset"},
	}

	results, _, _ := Aggregate(raw, defaultTestOpts())
	require.Len(t, results, 1)
	assert.Equal(t, "Kept", results[0].Name)
}

func TestAggregateBreakdownCountsBeforeDedup(t *testing.T) {
	raw := []types.DetectionResult{
		{Name: "Nginx", Confidence: 70, Source: "dataset"},
		{Name: "nginx", Confidence: 80, Source: "wappalyzer"},
		{Name: "PHP", Confidence: 90, Source: "wappalyzer"},
	}

	_, breakdown, _ := Aggregate(raw, defaultTestOpts())
	// 去重前统计，两个来源各自保留原始计数
	assert.Equal(t, 1, breakdown["dataset"])
	assert.Equal(t, 2, breakdown["wappalyzer"])
}

func TestAggregateConfidenceBuckets(t *testing.T) {
	raw := []types.DetectionResult{
		{Name: "A", Confidence: 95, Source: "dataset"},
		{Name: "B", Confidence: 80, Source: "dataset"},
		{Name: "C", Confidence: 79, Source: "dataset"},
		{Name: "D", Confidence: 50, Source: "dataset"},
		{Name: "E", Confidence: 49, Source: "dataset"},
	}

	_, _, buckets := Aggregate(raw, defaultTestOpts())
	assert.Equal(t, 2, buckets.High)
	assert.Equal(t, 2, buckets.Medium)
	assert.Equal(t, 1, buckets.Low)
}

func TestAggregateStableOrderForEqualConfidence(t *testing.T) {
	raw := []types.DetectionResult{
		{Name: "First", Confidence: 60, Source: "dataset"},
		{Name: "Second", Confidence: 60, Source: "dataset"},
	}

	results, _, _ := Aggregate(raw, defaultTestOpts())
	require.Len(t, results, 2)
	assert.Equal(t, "First", results[0].Name)
	assert.Equal(t, "Second", results[1].Name)
}

func TestAggregateVersionAndCategoryBackfill(t *testing.T) {
	raw := []types.DetectionResult{
		{Name: "WordPress", Confidence: 90, Source: "dataset"},
		{Name: "wordpress", Confidence: 75, Source: "whatweb", Versions: []string{"6.2"}, Category: "CMS"},
	}

	results, _, _ := Aggregate(raw, defaultTestOpts())
	require.Len(t, results, 1)
	assert.Equal(t, 90, results[0].Confidence)
	assert.Equal(t, []string{"6.2"}, results[0].Versions)
	assert.Equal(t, "CMS", results[0].Category)
}

func TestAggregateDedupIdempotent(t *testing.T) {
	raw := []types.DetectionResult{
		{Name: "Nginx", Confidence: 70, Source: "dataset", Versions: []string{"1.18.0"}},
		{Name: "nginx", Confidence: 80, Source: "wappalyzer", Versions: []string{"1.25.3"}},
		{Name: "PHP", Confidence: 90, Source: "dataset"},
	}

	once, _, _ := Aggregate(raw, defaultTestOpts())
	// 对已去重的列表再跑一遍聚合，结果不变
	twice, _, _ := Aggregate(once, defaultTestOpts())
	assert.Equal(t, once, twice)
}
