package query

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/hatlonely/tinymodel/rdb/schema"
)

var (
	ErrEmptyGroup    = errors.New("empty condition group")
	ErrUnknownObject = errors.New("unknown object in condition group")
)

// Operator 条件运算符
type Operator string

const (
	Equals             Operator = "="
	NotEquals          Operator = "!="
	LessThan           Operator = "<"
	LessThanOrEqual    Operator = "<="
	GreaterThan        Operator = ">"
	GreaterThanOrEqual Operator = ">="
	// Recent 比较 now() - column 与给定秒数
	Recent Operator = "recent"
)

// recent 条件常用的时长，单位秒
const (
	RecentPeriod     = 1209600
	VeryRecentPeriod = 12600
)

// Conjunction 条件与下一个兄弟节点的连接方式
type Conjunction string

const (
	And Conjunction = "AND"
	Or  Conjunction = "OR"
)

// Node 条件树节点，只有 *Condition 和 *Group 两种实现
type Node interface {
	conjunction() Conjunction
}

// Condition 单个条件，Conjunction 描述它与下一个兄弟节点的连接方式
type Condition struct {
	Column      string
	Operator    Operator
	Value       any
	Conjunction Conjunction
}

// Group 有序的条件组，元素可以是 Condition 或嵌套的 Group
type Group struct {
	Nodes       []Node
	Conjunction Conjunction
}

// NewCondition 创建条件，operator 为空时视为等于
func NewCondition(column string, operator Operator, value any) *Condition {
	return &Condition{Column: column, Operator: operator, Value: value}
}

// Eq 等值条件
func Eq(column string, value any) *Condition {
	return NewCondition(column, Equals, value)
}

// NewGroup 创建条件组
func NewGroup(nodes ...Node) *Group {
	return &Group{Nodes: nodes}
}

// Or 将与下一个兄弟节点的连接方式设置为 OR
func (c *Condition) Or() *Condition {
	c.Conjunction = Or
	return c
}

// Or 将与下一个兄弟节点的连接方式设置为 OR
func (g *Group) Or() *Group {
	g.Conjunction = Or
	return g
}

func (c *Condition) conjunction() Conjunction {
	if c.Conjunction == Or {
		return Or
	}
	return And
}

func (g *Group) conjunction() Conjunction {
	if g.Conjunction == Or {
		return Or
	}
	return And
}

func (c *Condition) operator() Operator {
	if c.Operator == "" {
		return Equals
	}
	return c.Operator
}

func validOperator(op Operator) bool {
	switch op {
	case Equals, NotEquals, LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual, Recent:
		return true
	}
	return false
}

// isNil 识别接口中包裹的空指针
func isNil(node Node) bool {
	if node == nil {
		return true
	}
	rv := reflect.ValueOf(node)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

// Validate 校验条件树：列必须存在，值必须满足列约束
// 空的顶层条件或空的嵌套组返回 ErrEmptyGroup；字段级问题写入返回的错误表
func Validate(node Node, s *schema.Schema) (schema.Errors, error) {
	if isNil(node) {
		return nil, ErrEmptyGroup
	}
	errs := schema.Errors{}
	if err := validateNode(node, s, "conditions", errs); err != nil {
		return nil, err
	}
	return errs, nil
}

func validateNode(node Node, s *schema.Schema, path string, errs schema.Errors) error {
	switch n := node.(type) {
	case *Condition:
		column, ok := s.Column(n.Column)
		if !ok {
			errs[n.Column] = schema.NonexistentColumn
			return nil
		}
		op := n.operator()
		if !validOperator(op) || !column.Validate(n.Value, op == Recent) {
			errs[n.Column] = schema.InvalidValue
		}
		return nil

	case *Group:
		if len(n.Nodes) == 0 {
			return errors.WithMessagef(ErrEmptyGroup, "at %s", path)
		}
		for i, child := range n.Nodes {
			childPath := fmt.Sprintf("%s[%d]", path, i)
			if isNil(child) {
				errs[childPath] = schema.UnknownObject
				continue
			}
			if err := validateNode(child, s, childPath, errs); err != nil {
				return err
			}
		}
		return nil
	}

	errs[path] = schema.UnknownObject
	return nil
}

// Compile 将条件树编译为 SQL 片段和按先序排列的参数
// alias 为空时列名不加前缀，用于 UPDATE 语句
func Compile(node Node, alias string) (string, []any, error) {
	var sb strings.Builder
	var args []any
	if err := compileNode(node, alias, &sb, &args); err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

func compileNode(node Node, alias string, sb *strings.Builder, args *[]any) error {
	if isNil(node) {
		return ErrUnknownObject
	}

	switch n := node.(type) {
	case *Condition:
		ref := n.Column
		if alias != "" {
			ref = alias + "." + n.Column
		}
		op := n.operator()
		switch {
		case op == Recent:
			fmt.Fprintf(sb, "unix_timestamp(now()) - unix_timestamp(%s) < ?", ref)
		case validOperator(op):
			fmt.Fprintf(sb, "%s %s ?", ref, op)
		default:
			return errors.Errorf("unsupported operator %q on column %s", op, n.Column)
		}
		*args = append(*args, n.Value)
		return nil

	case *Group:
		if len(n.Nodes) == 0 {
			return ErrEmptyGroup
		}
		sb.WriteString("(")
		for i, child := range n.Nodes {
			if i > 0 {
				// 连接词取自前一个元素
				fmt.Fprintf(sb, " %s ", n.Nodes[i-1].conjunction())
			}
			if err := compileNode(child, alias, sb, args); err != nil {
				return err
			}
		}
		sb.WriteString(")")
		return nil
	}

	return errors.WithMessagef(ErrUnknownObject, "%T", node)
}
