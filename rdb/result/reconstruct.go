package result

import (
	"io"

	"github.com/pkg/errors"

	"github.com/hatlonely/tinymodel/rdb/query"
)

// Stats 一次重建过程的统计
type Stats struct {
	// Rows 从游标读取的行数
	Rows int
	// Skipped 因兄弟连接扇出而整行跳过的行数
	Skipped int
}

type joinState struct {
	stalled bool
	// skip 停滞时记录的扇出倍数，0 表示该节点因左连接未命中而停滞
	skip int
}

// Reconstructor 将连接查询得到的扁平行还原为嵌套的实体树
//
// 多个一对多连接会让同一基表行产生 n1 x n2 行。每一层维护当前实体，
// 当某个节点的第一个子实体再次出现时，说明这是兄弟节点扇出造成的重复，
// 节点进入停滞状态并记录当前子实体数，之后一次跳过所有停滞节点倍数之积的行。
//
// 去重只比较标识列：同一别名下标识列相同的两行被视为同一个实体，即使其他列不同。
type Reconstructor struct {
	plan   *query.Plan
	states map[*query.Plan]*joinState
	stats  Stats
}

func NewReconstructor(plan *query.Plan) *Reconstructor {
	states := make(map[*query.Plan]*joinState)
	plan.Walk(func(_ *query.Plan, node *query.Plan) {
		states[node] = &joinState{}
	})
	return &Reconstructor{plan: plan, states: states}
}

// Reconstruct 使用 plan 重建 cursor 中的全部行
func Reconstruct(plan *query.Plan, cursor Cursor) ([]*Entity, error) {
	return NewReconstructor(plan).Reconstruct(cursor)
}

func (r *Reconstructor) Stats() Stats {
	return r.stats
}

// Reconstruct 读取游标直到结束，或遇到基表列全为空的行
func (r *Reconstructor) Reconstruct(cursor Cursor) ([]*Entity, error) {
	var entities []*Entity

	row, err := r.next(cursor)
	for err == nil {
		var base *Entity
		if n := len(entities); n > 0 {
			base = entities[n-1]
		}

		differs, derr := r.differs(base, r.plan, row)
		if derr != nil {
			return nil, derr
		}
		if differs {
			obj, oerr := r.entityFromRow(r.plan, row)
			if oerr != nil {
				return nil, oerr
			}
			if obj == nil {
				break
			}
			entities = append(entities, obj)
			base = obj
			for _, child := range r.plan.Children {
				r.destall(child)
			}
		}

		for i, child := range r.plan.Children {
			if err := r.addRow(child, base.children[i], row); err != nil {
				return nil, err
			}
		}

		inc := r.increment()
		// 前 inc-1 行是扇出造成的重复，直接丢弃
		for i := 0; i < inc && err == nil; i++ {
			row, err = r.next(cursor)
			if err == nil && i < inc-1 {
				r.stats.Skipped++
			}
		}
	}

	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "read row failed")
	}
	return entities, nil
}

func (r *Reconstructor) next(cursor Cursor) (Row, error) {
	row, err := cursor.Next()
	if err == nil {
		r.stats.Rows++
	}
	return row, err
}

// addRow 将当前行中属于 node 的列加入父实体的子集合
func (r *Reconstructor) addRow(node *query.Plan, collection *Collection, row Row) error {
	state := r.states[node]
	if state.stalled {
		return nil
	}

	id, err := r.identity(node, row)
	if err != nil {
		return err
	}
	if id == nil {
		state.stalled = true
		return nil
	}

	n := len(collection.Entities)

	// 第一个子实体再次出现，是兄弟节点扇出造成的重复
	if n > 1 && collection.Entities[0].Fields[node.Schema.Identity().Name] == id {
		state.stalled = true
		state.skip = n
		return nil
	}

	if n == 0 || collection.Entities[n-1].Fields[node.Schema.Identity().Name] != id {
		obj, err := r.entityFromRow(node, row)
		if err != nil {
			return err
		}
		collection.Entities = append(collection.Entities, obj)
		for _, child := range node.Children {
			r.destall(child)
		}
		return r.addChildren(node, obj, row)
	}

	// 与最后一个子实体相同，继续处理它的下一层
	return r.addChildren(node, collection.Entities[n-1], row)
}

func (r *Reconstructor) addChildren(node *query.Plan, parent *Entity, row Row) error {
	for i, child := range node.Children {
		if err := r.addRow(child, parent.children[i], row); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconstructor) destall(node *query.Plan) {
	for _, child := range node.Children {
		r.destall(child)
	}
	state := r.states[node]
	state.stalled = false
	state.skip = 0
}

// increment 所有停滞节点扇出倍数之积
func (r *Reconstructor) increment() int {
	inc := 1
	for _, state := range r.states {
		if state.stalled && state.skip > 0 {
			inc *= state.skip
		}
	}
	return inc
}

func (r *Reconstructor) identity(node *query.Plan, row Row) (any, error) {
	column := node.Schema.Identity()
	id, err := column.Normalize(row[column.Alias(node.Alias)])
	if err != nil {
		return nil, errors.WithMessagef(err, "alias %s", node.Alias)
	}
	return id, nil
}

// differs 判断当前行的标识列是否与实体不同，实体为空时视为不同
func (r *Reconstructor) differs(obj *Entity, node *query.Plan, row Row) (bool, error) {
	if obj == nil {
		return true, nil
	}
	id, err := r.identity(node, row)
	if err != nil {
		return false, err
	}
	return obj.Fields[node.Schema.Identity().Name] != id, nil
}

// entityFromRow 所有列都为空时返回 nil，表示左连接未命中
func (r *Reconstructor) entityFromRow(node *query.Plan, row Row) (*Entity, error) {
	children := make([]*Collection, 0, len(node.Children))
	for _, child := range node.Children {
		children = append(children, &Collection{Table: child.Schema.Table})
	}

	obj := newEntity(node.Schema, children)
	imported := 0
	for _, column := range node.Schema.Columns {
		value, err := column.Normalize(row[column.Alias(node.Alias)])
		if err != nil {
			return nil, errors.WithMessagef(err, "alias %s", node.Alias)
		}
		obj.Fields[column.Name] = value
		if value != nil {
			imported++
		}
	}

	if imported == 0 {
		return nil, nil
	}
	return obj, nil
}
