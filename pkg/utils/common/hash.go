package common

import (
	"encoding/base64"
	"fmt"

	"github.com/spaolacci/murmur3"
)

// StandBase64Encode 标准base64编码，每76字符插入换行
// favicon哈希的编码方式需与mmh3社区工具保持一致
func StandBase64Encode(data []byte) []byte {
	raw := base64.StdEncoding.EncodeToString(data)
	var buf []byte
	for i := 0; i < len(raw); i += 76 {
		end := i + 76
		if end > len(raw) {
			end = len(raw)
		}
		buf = append(buf, raw[i:end]...)
		buf = append(buf, '\n')
	}
	return buf
}

// Mmh3Hash32 计算murmur3 32位哈希，返回带符号十进制字符串
func Mmh3Hash32(data []byte) string {
	h := murmur3.New32()
	_, _ = h.Write(data)
	return fmt.Sprintf("%d", int32(h.Sum32()))
}
