package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileConfidenceSuffix(t *testing.T) {
	c := NewCompiler()

	p := c.Compile("wp-content;confidence:30")
	assert.Equal(t, 30, p.Confidence)
	assert.Equal(t, "wp-content", p.Expr)

	// 无后缀取默认值
	p = c.Compile("wp-content")
	assert.Equal(t, DefaultConfidence, p.Confidence)

	// 转义分号写法
	p = c.Compile(`X-Cache\;confidence:20`)
	assert.Equal(t, 20, p.Confidence)
	assert.Equal(t, "X-Cache", p.Expr)
}

func TestCompileVersionSuffix(t *testing.T) {
	c := NewCompiler()

	p := c.Compile(`nginx(?:/([\d.]+))?;confidence:70;version:\1`)
	require.Equal(t, 70, p.Confidence)
	require.Equal(t, 1, p.VersionGroup)

	ok, version := p.Match("nginx/1.18.0")
	assert.True(t, ok)
	assert.Equal(t, "1.18.0", version)

	// 可选组未命中时版本为空
	ok, version = p.Match("nginx")
	assert.True(t, ok)
	assert.Equal(t, "", version)
}

func TestCompileCaseInsensitiveAndMultiline(t *testing.T) {
	c := NewCompiler()

	p := c.Compile("WordPress")
	ok, _ := p.Match("powered by wordpress")
	assert.True(t, ok)

	// 点号需匹配换行
	p = c.Compile("<title>.*</title>")
	ok, _ = p.Match("<title>首页\n后台</title>")
	assert.True(t, ok)
}

func TestCompileInvalidPatternFallsBackToLiteral(t *testing.T) {
	c := NewCompiler()

	p := c.Compile("jquery([")
	ok, _ := p.Match("/static/jquery([.js")
	assert.True(t, ok, "非法正则应回退为字面量包含匹配")

	ok, _ = p.Match("/static/react.js")
	assert.False(t, ok)
}

func TestCompileMemoized(t *testing.T) {
	c := NewCompiler()

	p1 := c.Compile("nginx")
	p2 := c.Compile("nginx")
	assert.Same(t, p1, p2, "同一原始串应复用编译结果")
	assert.Equal(t, 1, c.Size())
}

func TestCompileEmptyPatternMatchesPresence(t *testing.T) {
	c := NewCompiler()

	p := c.Compile("")
	ok, _ := p.Match("任意值")
	assert.True(t, ok)
	ok, _ = p.Match("")
	assert.True(t, ok)
}
