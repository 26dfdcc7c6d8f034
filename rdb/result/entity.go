package result

import (
	"bytes"
	"encoding/json"

	"github.com/hatlonely/tinymodel/rdb/schema"
)

// Collection 某个连接节点下的子实体，按出现顺序排列
type Collection struct {
	Table    string
	Entities []*Entity
}

// Entity 一行中属于某张表的字段，以及每个连接子节点的子实体集合
type Entity struct {
	Kind   string
	Table  string
	Fields map[string]any

	columns  []string
	children []*Collection
}

func newEntity(s *schema.Schema, children []*Collection) *Entity {
	columns := make([]string, 0, len(s.Columns))
	for _, column := range s.Columns {
		columns = append(columns, column.Name)
	}
	return &Entity{
		Kind:     s.Kind,
		Table:    s.Table,
		Fields:   make(map[string]any, len(s.Columns)),
		columns:  columns,
		children: children,
	}
}

// Get 获取字段值，NULL 返回 nil, true
func (e *Entity) Get(name string) (any, bool) {
	v, ok := e.Fields[name]
	return v, ok
}

func (e *Entity) Int(name string) (int64, bool) {
	v, ok := e.Fields[name].(int64)
	return v, ok
}

func (e *Entity) Float(name string) (float64, bool) {
	v, ok := e.Fields[name].(float64)
	return v, ok
}

func (e *Entity) String(name string) (string, bool) {
	v, ok := e.Fields[name].(string)
	return v, ok
}

// Related 按表名获取子实体，没有匹配时返回空切片
func (e *Entity) Related(table string) []*Entity {
	for _, c := range e.children {
		if c.Table == table {
			return c.Entities
		}
	}
	return nil
}

// Collections 按连接顺序返回所有子实体集合
func (e *Entity) Collections() []*Collection {
	return e.children
}

// MarshalJSON 先输出字段（按列声明顺序），再输出子实体集合
func (e *Entity) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, value any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	for _, name := range e.columns {
		if err := write(name, e.Fields[name]); err != nil {
			return nil, err
		}
	}
	for _, c := range e.children {
		entities := c.Entities
		if entities == nil {
			entities = []*Entity{}
		}
		if err := write(c.Table, entities); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
