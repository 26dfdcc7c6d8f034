package schema

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Normalize 将驱动返回的原始值转换为列对应的标量类型
// id/int/timestamp -> int64，float -> float64，varchar/text -> string，NULL -> nil
func (c *Column) Normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch c.Type {
	case ColumnTypeID, ColumnTypeInt, ColumnTypeTimestamp:
		switch v := value.(type) {
		case time.Time:
			return v.Unix(), nil
		case float32:
			return int64(v), nil
		case float64:
			return int64(v), nil
		case []byte:
			return parseInt(string(v))
		case string:
			return parseInt(v)
		}
		if n, ok := asInt(value); ok {
			return n, nil
		}

	case ColumnTypeFloat:
		switch v := value.(type) {
		case []byte:
			return parseFloat(string(v))
		case string:
			return parseFloat(v)
		}
		if f, ok := asFloat(value); ok {
			return f, nil
		}

	case ColumnTypeVarchar, ColumnTypeText:
		switch v := value.(type) {
		case []byte:
			return string(v), nil
		case string:
			return v, nil
		}
		return fmt.Sprint(value), nil
	}

	return nil, errors.Errorf("column %s: cannot normalize %T", c.Name, value)
}

// parseInt 兼容 unix_timestamp 返回带小数的字符串
func parseInt(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse int %q", s)
	}
	return int64(f), nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse float %q", s)
	}
	return f, nil
}
