package schema

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrUnknownKind = errors.New("unknown entity kind")

// DescribeFunc 返回一种实体的有序列声明
type DescribeFunc func() Declaration

// Registry 实体表结构注册表
// 表结构在首次访问时构建并缓存，之后只读；并发首次访问可能重复构建，结果等价
type Registry struct {
	mu        sync.RWMutex
	describes map[string]DescribeFunc
	kinds     []string

	schemas sync.Map // kind -> *Schema
}

func NewRegistry() *Registry {
	return &Registry{
		describes: make(map[string]DescribeFunc),
	}
}

// Register 注册实体声明，重复注册同一 kind 返回错误
func (r *Registry) Register(kind string, describe DescribeFunc) error {
	if kind == "" || describe == nil {
		return errors.New("kind and describe are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.describes[kind]; ok {
		return errors.Errorf("kind %s already registered", kind)
	}
	r.describes[kind] = describe
	r.kinds = append(r.kinds, kind)
	return nil
}

// MustRegister 注册失败时 panic，用于包初始化
func (r *Registry) MustRegister(kind string, describe DescribeFunc) {
	if err := r.Register(kind, describe); err != nil {
		panic(err)
	}
}

// Schema 获取实体的表结构，首次访问时构建
func (r *Registry) Schema(kind string) (*Schema, error) {
	if s, ok := r.schemas.Load(kind); ok {
		return s.(*Schema), nil
	}

	r.mu.RLock()
	describe, ok := r.describes[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.WithMessagef(ErrUnknownKind, "kind %s", kind)
	}

	s, err := NewSchema(kind, describe())
	if err != nil {
		return nil, err
	}

	actual, _ := r.schemas.LoadOrStore(kind, s)
	return actual.(*Schema), nil
}

// Kinds 按注册顺序返回所有实体名
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, len(r.kinds))
	copy(kinds, r.kinds)
	return kinds
}

// LoadFile 从 yaml 文件注册实体声明
//
//	User:
//	  userid: id
//	  username: varchar alphanumeric maxlength=20 notnull
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read schema file %s", path)
	}
	return r.Load(data)
}

// Load 从 yaml 内容注册实体声明，保留文档中的列顺序
func (r *Registry) Load(data []byte) error {
	decls, kinds, err := ParseDeclarations(data)
	if err != nil {
		return err
	}
	for _, kind := range kinds {
		decl := decls[kind]
		if err := r.Register(kind, func() Declaration { return decl }); err != nil {
			return err
		}
	}
	return nil
}

// ParseDeclarations 解析 yaml 声明，map 不保证顺序，因此直接遍历 yaml.Node
func ParseDeclarations(data []byte) (map[string]Declaration, []string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, errors.Wrap(err, "yaml.Unmarshal failed")
	}
	if len(doc.Content) == 0 {
		return nil, nil, errors.New("empty schema document")
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nil, errors.Errorf("line %d: schema document must be a mapping", root.Line)
	}

	decls := make(map[string]Declaration)
	var kinds []string
	for i := 0; i+1 < len(root.Content); i += 2 {
		kindNode, columnsNode := root.Content[i], root.Content[i+1]
		if columnsNode.Kind != yaml.MappingNode {
			return nil, nil, errors.Errorf("line %d: kind %s must map column names to definitions", columnsNode.Line, kindNode.Value)
		}

		var decl Declaration
		for j := 0; j+1 < len(columnsNode.Content); j += 2 {
			nameNode, defNode := columnsNode.Content[j], columnsNode.Content[j+1]
			if defNode.Kind != yaml.ScalarNode {
				return nil, nil, errors.Errorf("line %d: definition of %s.%s must be a string", defNode.Line, kindNode.Value, nameNode.Value)
			}
			decl = append(decl, ColumnDecl{Name: nameNode.Value, Definition: defNode.Value})
		}

		if _, ok := decls[kindNode.Value]; ok {
			return nil, nil, errors.Errorf("line %d: kind %s declared twice", kindNode.Line, kindNode.Value)
		}
		decls[kindNode.Value] = decl
		kinds = append(kinds, kindNode.Value)
	}

	return decls, kinds, nil
}
