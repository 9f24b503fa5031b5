package common

import (
	"fmt"
	"math/rand"
	"strings"
	"unicode/utf8"

	"github.com/axgle/mahonia"
)

// 常见浏览器UA池
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

// RandomUA 随机返回一个浏览器User-Agent
func RandomUA() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// RandomIP 随机生成一个IP地址，用于X-Forwarded-For头
func RandomIP() string {
	return fmt.Sprintf("%d.%d.%d.%d", rand.Intn(223)+1, rand.Intn(255), rand.Intn(255), rand.Intn(254)+1)
}

// Str2UTF8 将指定字符集的文本转换为UTF-8
// charset为空或转换失败时原样返回
func Str2UTF8(s string, charset string) string {
	if s == "" || charset == "" {
		return s
	}
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "utf-8" || charset == "utf8" {
		return s
	}
	decoder := mahonia.NewDecoder(charset)
	if decoder == nil {
		return s
	}
	if converted := decoder.ConvertString(s); converted != "" {
		return converted
	}
	return s
}

// TruncateString 按字符数截断字符串，超出部分以省略号结尾
func TruncateString(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}

// RemoveDuplicates 去除字符串切片中的重复项，保持原始顺序
func RemoveDuplicates(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
