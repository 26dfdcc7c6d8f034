package schema

import (
	"math"
	"reflect"
	"regexp"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	alphabeticalRegexp = regexp.MustCompile(`^[A-Za-z]+$`)
	alphanumericRegexp = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	timestampRegexp    = regexp.MustCompile(`^\d{4}[-/.]\d\d[-/.]\d\d \d\d[:.]\d\d[:.]\d\d$`)
	nonASCIIRegexp     = regexp.MustCompile(`[^\x00-\x7f]`)

	// validator.Validate 可并发使用，缓存结构体信息
	formatValidator = validator.New()
)

// Validate 校验 value 是否满足该列的约束，recent 表示 value 是 recent 条件的时长参数
// 校验从不报错，只返回是否合法，由调用方组装错误表
func (c *Column) Validate(value any, recent bool) bool {
	if value == nil {
		return !c.NotNull
	}

	switch c.Type {
	case ColumnTypeID, ColumnTypeInt:
		n, ok := asInt(value)
		if !ok {
			return false
		}
		return !c.Positive || n >= 0

	case ColumnTypeFloat:
		f, ok := asFloat(value)
		if !ok {
			return false
		}
		return !c.Positive || f >= 0

	case ColumnTypeVarchar, ColumnTypeText:
		s, ok := value.(string)
		if !ok {
			return false
		}
		if !c.validateFormat(s) {
			return false
		}
		if c.MaxLength > 0 {
			length := len(s)
			if c.Type == ColumnTypeVarchar {
				length = utf8.RuneCountInString(s)
			}
			if length > c.MaxLength {
				return false
			}
		}
		return true

	case ColumnTypeTimestamp:
		if recent {
			_, ok := asInt(value)
			return ok
		}
		s, ok := value.(string)
		return ok && timestampRegexp.MatchString(s)
	}

	return false
}

// validateFormat 至多应用一种格式约束
func (c *Column) validateFormat(s string) bool {
	switch {
	case c.Alphabetical:
		return alphabeticalRegexp.MatchString(s)
	case c.Alphanumeric:
		return alphanumericRegexp.MatchString(s)
	case c.Email:
		return formatValidator.Var(nonASCIIRegexp.ReplaceAllString(s, "-"), "required,email") == nil
	case c.URL:
		return formatValidator.Var(nonASCIIRegexp.ReplaceAllString(s, "-"), "required,url") == nil
	}
	return true
}

// asInt 仅接受整数类型，超出 int64 范围的无符号数不合法
func asInt(value any) (int64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

// asFloat 接受浮点数，整数先转换为浮点数
func asFloat(value any) (float64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	}
	if n, ok := asInt(value); ok {
		return float64(n), true
	}
	return 0, false
}
