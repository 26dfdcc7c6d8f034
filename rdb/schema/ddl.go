package schema

import (
	"fmt"
	"strings"
)

// Dialect SQL 方言，取值与 database/sql 的驱动名一致
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite3"
)

// SQL 返回该列的 DDL 片段，供建表以及外部 schema 对比工具使用
// adding 为 true 时表示新增列，id 列会带上 primary key
func (c *Column) SQL(dialect Dialect, adding bool) string {
	var sb strings.Builder
	sb.WriteString(quote(c.Name, dialect))

	switch c.Type {
	case ColumnTypeID:
		if dialect == DialectSQLite {
			// sqlite 只有 integer primary key 才是 rowid 别名
			sb.WriteString(" integer primary key autoincrement not null")
			return sb.String()
		}
		sb.WriteString(" int unsigned auto_increment")
	case ColumnTypeInt:
		sb.WriteString(" int")
		if c.Positive {
			sb.WriteString(" unsigned")
		}
	case ColumnTypeFloat:
		sb.WriteString(" float")
	case ColumnTypeVarchar:
		if c.MaxLength > 0 {
			fmt.Fprintf(&sb, " varchar(%d)", c.MaxLength)
		} else {
			sb.WriteString(" varchar(255)")
		}
	case ColumnTypeText:
		sb.WriteString(" text")
	case ColumnTypeTimestamp:
		sb.WriteString(" timestamp")
	}

	if c.NotNull {
		sb.WriteString(" not null")
	} else {
		sb.WriteString(" null")
	}

	if adding && c.Type == ColumnTypeID {
		sb.WriteString(" primary key")
	}

	return sb.String()
}

// CreateTableSQL 根据表结构生成建表语句
func CreateTableSQL(s *Schema, dialect Dialect) string {
	columns := make([]string, 0, len(s.Columns))
	for _, column := range s.Columns {
		columns = append(columns, column.SQL(dialect, true))
	}

	suffix := ""
	if dialect == DialectMySQL {
		suffix = " CHARSET=utf8mb4"
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)%s",
		quote(s.Table, dialect), strings.Join(columns, ",\n  "), suffix)
}

// DropTableSQL 生成删表语句
func DropTableSQL(s *Schema, dialect Dialect) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", quote(s.Table, dialect))
}

func quote(name string, dialect Dialect) string {
	if dialect == DialectSQLite {
		return `"` + name + `"`
	}
	return "`" + name + "`"
}
