package order

import (
	"strings"

	"github.com/google/uuid"
)

// CodePrefix 订单号前缀
const CodePrefix = "ORDER-"

// GenerateCode 生成订单号
// 格式：ORDER- + 8位大写十六进制，共14位（列宽20）
// 空间只有32位，冲突由唯一索引兜底，调用方重试
func GenerateCode() string {
	id := uuid.New()
	return CodePrefix + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}
