package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidDefinition = errors.New("invalid column definition")

// ColumnType 列类型
type ColumnType string

const (
	ColumnTypeID        ColumnType = "id"
	ColumnTypeInt       ColumnType = "int"
	ColumnTypeFloat     ColumnType = "float"
	ColumnTypeVarchar   ColumnType = "varchar"
	ColumnTypeText      ColumnType = "text"
	ColumnTypeTimestamp ColumnType = "timestamp"
)

// Column 由定义字符串解析得到的列描述，解析后不再修改
type Column struct {
	Name string
	Type ColumnType

	Alphabetical bool
	Alphanumeric bool
	Email        bool
	URL          bool
	Positive     bool
	NotNull      bool

	// MaxLength 为 0 表示不限制；varchar 按字符计数，text 按字节计数
	MaxLength int
}

// ParseColumn 解析形如 "varchar alphanumeric maxlength=20 notnull" 的定义字符串
func ParseColumn(name string, definition string) (*Column, error) {
	tokens := strings.Fields(definition)
	if len(tokens) == 0 {
		return nil, errors.WithMessagef(ErrInvalidDefinition, "column %s: empty definition", name)
	}

	column := &Column{Name: name}

	switch strings.ToLower(tokens[0]) {
	case "id":
		column.Type = ColumnTypeID
		column.Positive = true
		column.NotNull = true
	case "int":
		column.Type = ColumnTypeInt
	case "float":
		column.Type = ColumnTypeFloat
	case "char", "varchar":
		column.Type = ColumnTypeVarchar
	case "text":
		column.Type = ColumnTypeText
	case "timestamp":
		column.Type = ColumnTypeTimestamp
	default:
		return nil, errors.WithMessagef(ErrInvalidDefinition, "column %s: unknown type %q", name, tokens[0])
	}

	for _, token := range tokens[1:] {
		token = strings.ToLower(token)
		if key, value, ok := strings.Cut(token, "="); ok {
			if key != "maxlength" && key != "max_length" {
				return nil, errors.WithMessagef(ErrInvalidDefinition, "column %s: unknown restriction %q", name, key)
			}
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return nil, errors.WithMessagef(ErrInvalidDefinition, "column %s: invalid max length %q", name, value)
			}
			column.MaxLength = n
			continue
		}

		switch token {
		case "alphabetical":
			column.Alphabetical = true
		case "alphanumeric":
			column.Alphanumeric = true
		case "email":
			column.Email = true
		case "url":
			column.URL = true
		case "positive":
			column.Positive = true
		case "notnull":
			column.NotNull = true
		default:
			return nil, errors.WithMessagef(ErrInvalidDefinition, "column %s: unknown restriction %q", name, token)
		}
	}

	return column, nil
}

// IsIdentity 是否为自增主键列
func (c *Column) IsIdentity() bool {
	return c.Type == ColumnTypeID
}

// SelectExpr 返回 SELECT 子句中该列的表达式，timestamp 列转换为 unix 时间戳
func (c *Column) SelectExpr(alias string) string {
	if c.Type == ColumnTypeTimestamp {
		return fmt.Sprintf("unix_timestamp(%s.%s) AS %s", alias, c.Name, c.Alias(alias))
	}
	return fmt.Sprintf("%s.%s AS %s", alias, c.Name, c.Alias(alias))
}

// Alias 返回该列在结果行中的名字，形如 b_thingid
func (c *Column) Alias(alias string) string {
	return alias + "_" + c.Name
}

func (c *Column) String() string {
	parts := []string{string(c.Type)}
	if c.Alphabetical {
		parts = append(parts, "alphabetical")
	}
	if c.Alphanumeric {
		parts = append(parts, "alphanumeric")
	}
	if c.Email {
		parts = append(parts, "email")
	}
	if c.URL {
		parts = append(parts, "url")
	}
	if c.Positive && c.Type != ColumnTypeID {
		parts = append(parts, "positive")
	}
	if c.NotNull && c.Type != ColumnTypeID {
		parts = append(parts, "notnull")
	}
	if c.MaxLength > 0 {
		parts = append(parts, fmt.Sprintf("maxlength=%d", c.MaxLength))
	}
	return strings.Join(parts, " ")
}
