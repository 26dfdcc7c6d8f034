package query

import (
	"github.com/pkg/errors"

	"github.com/hatlonely/tinymodel/rdb/schema"
)

var ErrTooManyJoins = errors.New("too many joins for single-letter aliases")

// Key 连接键：父表列 = 子表列
type Key struct {
	Parent string
	Child  string
}

// Join 连接树节点，Kind 为目标实体名
type Join struct {
	Kind     string
	Keys     []Key
	Children []*Join
}

// NewJoin 创建连接节点，keys 为空时按父表标识列同名连接
func NewJoin(kind string, keys []Key, children ...*Join) *Join {
	return &Join{Kind: kind, Keys: keys, Children: children}
}

// On 同名列连接
func On(columns ...string) []Key {
	keys := make([]Key, 0, len(columns))
	for _, column := range columns {
		keys = append(keys, Key{Parent: column, Child: column})
	}
	return keys
}

// KeyPair 父表列与子表列名字不同时使用
func KeyPair(parent string, child string) Key {
	return Key{Parent: parent, Child: child}
}

// Resolver 按实体名获取表结构，schema.Registry 实现了该接口
type Resolver interface {
	Schema(kind string) (*schema.Schema, error)
}

// Plan 编译后的连接树，别名按先序分配，基表为 a
type Plan struct {
	Alias    string
	Schema   *schema.Schema
	Keys     []Key
	Children []*Plan
}

const maxAliases = 'z' - 'a' + 1

// NewPlan 解析实体并为连接树分配别名
func NewPlan(resolver Resolver, kind string, joins ...*Join) (*Plan, error) {
	base, err := resolver.Schema(kind)
	if err != nil {
		return nil, err
	}

	root := &Plan{Alias: "a", Schema: base}
	next := 1
	for _, join := range joins {
		child, err := addJoin(resolver, root, join, &next)
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, child)
	}
	return root, nil
}

func addJoin(resolver Resolver, parent *Plan, join *Join, next *int) (*Plan, error) {
	if join == nil {
		return nil, errors.New("nil join")
	}
	if *next >= maxAliases {
		return nil, ErrTooManyJoins
	}

	s, err := resolver.Schema(join.Kind)
	if err != nil {
		return nil, err
	}

	keys := join.Keys
	if len(keys) == 0 {
		keys = On(parent.Schema.Identity().Name)
	}
	for _, key := range keys {
		if _, ok := parent.Schema.Column(key.Parent); !ok {
			return nil, errors.Errorf("join %s: parent %s has no column %s", join.Kind, parent.Schema.Kind, key.Parent)
		}
		if _, ok := s.Column(key.Child); !ok {
			return nil, errors.Errorf("join %s: no column %s", join.Kind, key.Child)
		}
	}

	plan := &Plan{Alias: string(rune('a' + *next)), Schema: s, Keys: keys}
	*next++

	for _, grandchild := range join.Children {
		child, err := addJoin(resolver, plan, grandchild, next)
		if err != nil {
			return nil, err
		}
		plan.Children = append(plan.Children, child)
	}
	return plan, nil
}

// Walk 先序遍历计划树
func (p *Plan) Walk(fn func(parent *Plan, node *Plan)) {
	var walk func(parent *Plan, node *Plan)
	walk = func(parent *Plan, node *Plan) {
		fn(parent, node)
		for _, child := range node.Children {
			walk(node, child)
		}
	}
	walk(nil, p)
}

// Size 计划树中的节点数，包括基表
func (p *Plan) Size() int {
	n := 0
	p.Walk(func(*Plan, *Plan) { n++ })
	return n
}
