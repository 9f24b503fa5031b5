package signature

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/donnie4w/go-logger/logger"
)

// 默认置信度，模式未携带confidence后缀时使用
const DefaultConfidence = 50

// 正则匹配超时，防御性上限，命中即放弃该模式
const matchTimeout = 2 * time.Second

// 模式尾部的元数据后缀，先剥离version再剥离confidence
// 数据集中分号前可能带转义反斜杠，两种写法都接受
var (
	versionSuffixRe    = regexp.MustCompile(`\\?;\s*version:\\(\d+)\s*$`)
	confidenceSuffixRe = regexp.MustCompile(`\\?;\s*confidence:(\d+)\s*$`)
)

// Pattern 编译后的单条模式
type Pattern struct {
	Raw          string // 原始模式串，含后缀
	Expr         string // 剥离后缀后的正则文本
	Confidence   int    // 该模式的置信度
	VersionGroup int    // 版本号所在捕获组，0表示无

	re      *regexp2.Regexp
	literal bool   // 编译失败时回退为字面量匹配
	lowered string // 字面量匹配用的小写文本
}

// Match 在文本中查找该模式
// 返回是否命中与提取到的版本号（无则为空串）
func (p *Pattern) Match(s string) (bool, string) {
	if s == "" && p.Expr != "" {
		return false, ""
	}
	if p.literal {
		if p.lowered == "" {
			return true, ""
		}
		return strings.Contains(strings.ToLower(s), p.lowered), ""
	}
	m, err := p.re.FindStringMatch(s)
	if err != nil || m == nil {
		return false, ""
	}
	if p.VersionGroup > 0 {
		if g := m.GroupByNumber(p.VersionGroup); g != nil && len(g.Captures) > 0 {
			return true, g.String()
		}
	}
	return true, ""
}

// Compiler 模式编译器，按原始串记忆化，并发安全
type Compiler struct {
	mu    sync.RWMutex
	cache map[string]*Pattern
}

// NewCompiler 创建模式编译器
func NewCompiler() *Compiler {
	return &Compiler{cache: make(map[string]*Pattern)}
}

// Compile 编译模式串，同一原始串只编译一次
func (c *Compiler) Compile(raw string) *Pattern {
	c.mu.RLock()
	p, ok := c.cache[raw]
	c.mu.RUnlock()
	if ok {
		return p
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// 双检，避免并发重复编译
	if p, ok = c.cache[raw]; ok {
		return p
	}
	p = compilePattern(raw)
	c.cache[raw] = p
	return p
}

// Size 返回缓存的模式数量
func (c *Compiler) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// compilePattern 剥离后缀并编译为不区分大小写、点号匹配换行的正则
func compilePattern(raw string) *Pattern {
	p := &Pattern{
		Raw:        raw,
		Expr:       raw,
		Confidence: DefaultConfidence,
	}

	// version后缀在最外层，先剥
	if m := versionSuffixRe.FindStringSubmatch(p.Expr); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			p.VersionGroup = n
		}
		p.Expr = p.Expr[:len(p.Expr)-len(m[0])]
	}
	if m := confidenceSuffixRe.FindStringSubmatch(p.Expr); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			if n > 100 {
				n = 100
			}
			if n < 0 {
				n = 0
			}
			p.Confidence = n
		}
		p.Expr = p.Expr[:len(p.Expr)-len(m[0])]
	}

	if p.Expr == "" {
		// 空模式表示仅校验字段或键存在
		p.literal = true
		return p
	}

	re, err := regexp2.Compile(p.Expr, regexp2.IgnoreCase|regexp2.Singleline)
	if err != nil {
		// 回退为字面量包含匹配，编译错误不向上传播
		logger.Debugf("模式 %q 编译失败，回退为字面量匹配：%v", raw, err)
		p.literal = true
		p.lowered = strings.ToLower(p.Expr)
		return p
	}
	re.MatchTimeout = matchTimeout
	p.re = re
	return p
}
