package result

import "io"

// Row 一行结果，键为 alias_column
type Row map[string]any

// Cursor 有序的行游标，结束时返回 io.EOF
type Cursor interface {
	Next() (Row, error)
}

// SliceCursor 内存中的行游标
type SliceCursor struct {
	rows []Row
	pos  int
}

func NewSliceCursor(rows ...Row) *SliceCursor {
	return &SliceCursor{rows: rows}
}

func (c *SliceCursor) Next() (Row, error) {
	if c.pos >= len(c.rows) {
		return nil, io.EOF
	}
	row := c.rows[c.pos]
	c.pos++
	return row, nil
}
