package schema

import "strings"

// Pluralize 由实体名推导表名，规则需与已有数据库保持兼容：
// 辅音 + y 结尾变为 ies，s/h/x/z 结尾加 es，其余加 s
func Pluralize(kind string) string {
	name := strings.ToLower(kind)
	n := len(name)
	if n == 0 {
		return name
	}

	last := name[n-1]
	switch {
	case last == 'y' && n > 1 && !isVowel(name[n-2]):
		return name[:n-1] + "ies"
	case last == 's' || last == 'h' || last == 'x' || last == 'z':
		return name + "es"
	}
	return name + "s"
}

func isVowel(c byte) bool {
	return strings.IndexByte("aeiou", c) >= 0
}
