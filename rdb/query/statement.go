package query

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hatlonely/tinymodel/rdb/schema"
)

// Statement 参数化的 SQL 语句
type Statement struct {
	SQL  string
	Args []any
}

// Select 编译带连接的查询，列顺序与 Plan 的先序一致
func Select(plan *Plan, cond Node) (*Statement, error) {
	var columns []string
	var joins []string

	plan.Walk(func(parent *Plan, node *Plan) {
		for _, column := range node.Schema.Columns {
			columns = append(columns, column.SelectExpr(node.Alias))
		}
		if parent == nil {
			return
		}
		on := make([]string, 0, len(node.Keys))
		for _, key := range node.Keys {
			on = append(on, fmt.Sprintf("%s.%s = %s.%s", parent.Alias, key.Parent, node.Alias, key.Child))
		}
		joins = append(joins, fmt.Sprintf("LEFT JOIN %s AS %s ON %s", node.Schema.Table, node.Alias, strings.Join(on, " AND ")))
	})

	where, args, err := Compile(cond, plan.Alias)
	if err != nil {
		return nil, errors.WithMessage(err, "compile conditions")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(columns, ", "))
	fmt.Fprintf(&sb, " FROM %s AS %s", plan.Schema.Table, plan.Alias)
	for _, join := range joins {
		sb.WriteString(" ")
		sb.WriteString(join)
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(where)

	return &Statement{SQL: sb.String(), Args: args}, nil
}

// Insert 编译插入语句，只包含出现且非空的字段，按表结构列顺序排列
func Insert(s *schema.Schema, fields map[string]any) (*Statement, error) {
	var columns []string
	var placeholders []string
	var args []any

	for _, column := range s.Columns {
		value, ok := fields[column.Name]
		if !ok || value == nil {
			continue
		}
		columns = append(columns, column.Name)
		placeholders = append(placeholders, "?")
		args = append(args, value)
	}

	if len(columns) == 0 {
		// 全部列都取默认值时让数据库分配标识列
		return &Statement{
			SQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (NULL)", s.Table, s.Identity().Name),
		}, nil
	}

	return &Statement{
		SQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			s.Table, strings.Join(columns, ", "), strings.Join(placeholders, ", ")),
		Args: args,
	}, nil
}

// Update 编译更新语句，SET 子句按表结构列顺序排列，条件列不加别名
func Update(s *schema.Schema, fields map[string]any, cond Node) (*Statement, error) {
	var sets []string
	var args []any

	for _, column := range s.Columns {
		value, ok := fields[column.Name]
		if !ok {
			continue
		}
		sets = append(sets, column.Name+" = ?")
		args = append(args, value)
	}
	if len(sets) == 0 {
		return nil, errors.Errorf("update %s: no fields", s.Table)
	}

	where, condArgs, err := Compile(cond, "")
	if err != nil {
		return nil, errors.WithMessage(err, "compile conditions")
	}

	return &Statement{
		SQL:  fmt.Sprintf("UPDATE %s SET %s WHERE %s", s.Table, strings.Join(sets, ", "), where),
		Args: append(args, condArgs...),
	}, nil
}

func (s *Statement) String() string {
	return fmt.Sprintf("%s [%d args]", s.SQL, len(s.Args))
}
