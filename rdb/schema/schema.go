package schema

import (
	"github.com/pkg/errors"
)

// ValidationError 字段级校验错误类型
type ValidationError string

const (
	NonexistentColumn ValidationError = "nonexistent_column"
	InvalidValue      ValidationError = "invalid_value"
	UnknownObject     ValidationError = "unknown_object"
)

// Errors 字段名（或条件位置）到错误类型的映射
type Errors map[string]ValidationError

// ColumnDecl 一列的声明：列名与定义字符串
type ColumnDecl struct {
	Name       string `yaml:"name"`
	Definition string `yaml:"definition"`
}

// Declaration 有序的列声明，第一列约定为标识列
type Declaration []ColumnDecl

// Schema 一种实体对应的表结构，构建后只读
type Schema struct {
	Kind    string
	Table   string
	Columns []*Column

	index map[string]*Column
}

// NewSchema 解析声明并构建表结构
func NewSchema(kind string, decl Declaration) (*Schema, error) {
	if kind == "" {
		return nil, errors.New("kind is empty")
	}
	if len(decl) == 0 {
		return nil, errors.Errorf("kind %s declares no columns", kind)
	}

	s := &Schema{
		Kind:    kind,
		Table:   Pluralize(kind),
		Columns: make([]*Column, 0, len(decl)),
		index:   make(map[string]*Column, len(decl)),
	}

	for _, d := range decl {
		if _, ok := s.index[d.Name]; ok {
			return nil, errors.Errorf("kind %s declares column %s twice", kind, d.Name)
		}
		column, err := ParseColumn(d.Name, d.Definition)
		if err != nil {
			return nil, errors.WithMessagef(err, "kind %s", kind)
		}
		s.Columns = append(s.Columns, column)
		s.index[d.Name] = column
	}

	return s, nil
}

// Column 按名字查找列
func (s *Schema) Column(name string) (*Column, bool) {
	column, ok := s.index[name]
	return column, ok
}

// Identity 标识列，即第一个声明的列
func (s *Schema) Identity() *Column {
	return s.Columns[0]
}

// ValidateFields 校验 insert/update 的字段值
// 自增 id 列由数据库分配，出现非空值即视为非法
func (s *Schema) ValidateFields(fields map[string]any) Errors {
	errs := Errors{}
	for name, value := range fields {
		column, ok := s.index[name]
		if !ok {
			errs[name] = NonexistentColumn
			continue
		}
		if column.IsIdentity() {
			if value != nil {
				errs[name] = InvalidValue
			}
			continue
		}
		if !column.Validate(value, false) {
			errs[name] = InvalidValue
		}
	}
	return errs
}

// ValidateComplete 检查 insert 时未提供的 notnull 列
func (s *Schema) ValidateComplete(fields map[string]any) Errors {
	errs := Errors{}
	for _, column := range s.Columns {
		if column.IsIdentity() || !column.NotNull {
			continue
		}
		if value, ok := fields[column.Name]; !ok || value == nil {
			errs[column.Name] = InvalidValue
		}
	}
	return errs
}

// Merge 合并错误表，已有的键不覆盖
func (e Errors) Merge(other Errors) Errors {
	for k, v := range other {
		if _, ok := e[k]; !ok {
			e[k] = v
		}
	}
	return e
}
