package rules

import (
	"fmt"
	"strings"

	"github.com/donnie4w/go-logger/logger"
	"github.com/google/cel-go/cel"
)

// Input 一次规则求值的变量集
type Input struct {
	URL     string
	Status  int
	Title   string
	Body    string
	Headers map[string]string
	Cookies map[string]string
}

// compiledRule 编译后的规则
type compiledRule struct {
	rule    Rule
	program cel.Program
}

// Evaluator 自定义规则求值器，编译一次后并发安全
type Evaluator struct {
	compiled []compiledRule
}

// NewEvaluator 编译规则表达式
// 单条规则编译失败只记录告警并跳过，不影响其余规则
func NewEvaluator(ruleList []Rule) (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("url", cel.StringType),
		cel.Variable("status", cel.IntType),
		cel.Variable("title", cel.StringType),
		cel.Variable("body", cel.StringType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("cookies", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("创建CEL环境失败: %w", err)
	}

	ev := &Evaluator{}
	for _, r := range ruleList {
		ast, issues := env.Compile(r.Expr)
		if issues != nil && issues.Err() != nil {
			logger.Warn(fmt.Sprintf("规则 %s 表达式编译失败：%v", r.Name, issues.Err()))
			continue
		}
		program, err := env.Program(ast)
		if err != nil {
			logger.Warn(fmt.Sprintf("规则 %s 构建失败：%v", r.Name, err))
			continue
		}
		ev.compiled = append(ev.compiled, compiledRule{rule: r, program: program})
	}
	logger.Debugf("自定义规则编译完成：%d/%d条可用", len(ev.compiled), len(ruleList))
	return ev, nil
}

// Size 返回可用规则数量
func (e *Evaluator) Size() int {
	if e == nil {
		return 0
	}
	return len(e.compiled)
}

// Evaluate 对输入求值，返回命中的规则
// 单条规则运行出错按未命中处理
func (e *Evaluator) Evaluate(in Input) []Rule {
	if e == nil {
		return nil
	}
	vars := map[string]any{
		"url":     in.URL,
		"status":  in.Status,
		"title":   in.Title,
		"body":    in.Body,
		"headers": lowerKeys(in.Headers),
		"cookies": in.Cookies,
	}

	var hits []Rule
	for _, cr := range e.compiled {
		out, _, err := cr.program.Eval(vars)
		if err != nil {
			logger.Debugf("规则 %s 求值出错：%v", cr.rule.Name, err)
			continue
		}
		if matched, ok := out.Value().(bool); ok && matched {
			hits = append(hits, cr.rule)
		}
	}
	return hits
}

// lowerKeys 头名统一小写，规则表达式里不用关心大小写
func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
