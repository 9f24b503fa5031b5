package utils

import (
	"testing"

	"techprobe/pkg/signature"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDatasetsPresent(t *testing.T) {
	require.True(t, HasEmbeddedDatasets())

	datasets, err := DefaultDatasets()
	require.NoError(t, err)
	require.NotEmpty(t, datasets)

	// 文件名升序即优先级升序
	for i := 1; i < len(datasets); i++ {
		assert.Greater(t, datasets[i].Priority, datasets[i-1].Priority)
	}
}

func TestDefaultDatasetsLoadIntoStore(t *testing.T) {
	datasets, err := DefaultDatasets()
	require.NoError(t, err)

	store := signature.NewStore()
	require.NoError(t, store.Load(datasets))

	// 核心技术必须存在
	for _, name := range []string{"WordPress", "Nginx", "PHP", "jQuery", "Apache Tomcat"} {
		assert.NotNil(t, store.Technologies[store.CanonicalName(name)], "缺少内置技术 %s", name)
	}

	// implies链完整
	wp := store.Technologies["WordPress"]
	require.NotNil(t, wp)
	assert.Contains(t, wp.Implies, "PHP")

	// 分类表可解析
	assert.Equal(t, "CMS", store.Categories[1])
	assert.Equal(t, "Web servers", store.Categories[22])
}

func TestDefaultDatasetsPatternsCompile(t *testing.T) {
	datasets, err := DefaultDatasets()
	require.NoError(t, err)

	store := signature.NewStore()
	require.NoError(t, store.Load(datasets))

	// 索引构建会预编译全部模式，验证无一失败回退影响版本提取
	idx := signature.NewIndex(store, signature.NewCompiler())

	headerPatterns := idx.FieldPatterns(signature.FieldHeaders)
	require.NotEmpty(t, headerPatterns)

	// Nginx的Server头模式应能提取版本
	var nginxPattern *signature.Pattern
	for _, ip := range headerPatterns {
		for _, ref := range ip.Refs {
			if ref.Technology == "Nginx" {
				nginxPattern = ref.Pattern
			}
		}
	}
	require.NotNil(t, nginxPattern)

	ok, version := nginxPattern.Match("nginx/1.18.0")
	assert.True(t, ok)
	assert.Equal(t, "1.18.0", version)
}
