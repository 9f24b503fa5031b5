package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Rule 单条自定义检测规则
// Expr为CEL表达式，可用变量：url、status、title、body、headers、cookies
type Rule struct {
	Name       string `yaml:"name"`       // 技术名称
	Category   string `yaml:"category"`   // 分类名称
	Confidence int    `yaml:"confidence"` // 置信度，缺省60
	Version    string `yaml:"version"`    // 固定版本号，可选
	Expr       string `yaml:"expr"`       // CEL匹配表达式
}

// ruleFile 规则文件顶层结构
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// 规则未声明置信度时的默认值
const defaultRuleConfidence = 60

// Parse 解析规则文件内容
func Parse(data []byte) ([]Rule, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("规则文件解析失败: %w", err)
	}
	var out []Rule
	for _, r := range file.Rules {
		if r.Name == "" || r.Expr == "" {
			return nil, fmt.Errorf("规则缺少name或expr字段")
		}
		if r.Confidence <= 0 {
			r.Confidence = defaultRuleConfidence
		}
		if r.Confidence > 100 {
			r.Confidence = 100
		}
		out = append(out, r)
	}
	return out, nil
}

// Load 从文件加载规则
func Load(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取规则文件失败: %w", err)
	}
	return Parse(data)
}
