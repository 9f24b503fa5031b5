package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.Load([]Dataset{{Name: "base.json", Data: []byte(baseDataset)}}))
	return NewIndex(s, NewCompiler())
}

func TestIndexFieldPatterns(t *testing.T) {
	idx := buildTestIndex(t)

	headers := idx.FieldPatterns(FieldHeaders)
	require.Len(t, headers, 2)

	// 所有模式在构建索引时已编译
	for _, ip := range headers {
		for _, ref := range ip.Refs {
			require.NotNil(t, ref.Pattern)
			assert.Equal(t, ip.Raw, ref.Pattern.Raw)
		}
	}

	// 键值型模式保留键名
	var serverKeys []string
	for _, ip := range headers {
		for _, ref := range ip.Refs {
			serverKeys = append(serverKeys, ref.Key)
		}
	}
	assert.Contains(t, serverKeys, "Server")
	assert.Contains(t, serverKeys, "X-Powered-By")
}

func TestIndexImpliedByReverseMap(t *testing.T) {
	idx := buildTestIndex(t)

	// WordPress的implies含PHP，反向表应指回WordPress
	impliers, ok := idx.ImpliedBy()["PHP"]
	require.True(t, ok)
	assert.Equal(t, []string{"WordPress"}, impliers)
}

func TestIndexImpliesConfidenceSuffixStripped(t *testing.T) {
	data := `{
	  "technologies": {
	    "Shopify": {"implies": ["Ruby;confidence:50"]},
	    "Ruby": {"cats": [27]}
	  }
	}`
	s := NewStore()
	require.NoError(t, s.Load([]Dataset{{Name: "t.json", Data: []byte(data)}}))
	idx := NewIndex(s, NewCompiler())

	assert.Equal(t, []string{"Shopify"}, idx.ImpliedBy()["Ruby"])
}

func TestIndexCategoryLookup(t *testing.T) {
	idx := buildTestIndex(t)

	assert.Equal(t, "CMS", idx.CategoryOf("wordpress"))
	assert.Equal(t, "Web servers", idx.CategoryOf("Nginx"))
	assert.Equal(t, "", idx.CategoryOf("不存在的技术"))
}
