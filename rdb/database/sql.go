package database

import (
	"context"
	"database/sql"
	"io"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	gormmysql "gorm.io/driver/mysql"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hatlonely/tinymodel/rdb/query"
	"github.com/hatlonely/tinymodel/rdb/result"
	"github.com/hatlonely/tinymodel/rdb/schema"
)

type SQLOptions struct {
	Driver   string `cfg:"driver" def:"mysql" validate:"oneof=mysql sqlite3"`
	DSN      string `cfg:"dsn"`
	Host     string `cfg:"host" def:"localhost"`
	Port     string `cfg:"port" def:"3306"`
	Database string `cfg:"database"`
	Username string `cfg:"username"`
	Password string `cfg:"password"`
	Charset  string `cfg:"charset" def:"utf8mb4"`
	MaxConns int    `cfg:"maxConns" def:"10"`
	MaxIdle  int    `cfg:"maxIdle" def:"5"`
	// Gorm 为 true 时通过 gorm 打开连接，便于与应用已有的 gorm 配置保持一致
	Gorm bool `cfg:"gorm"`
}

// ExecResult 写操作的结果
type ExecResult struct {
	LastInsertID int64
	RowsAffected int64
}

// Rows 查询结果游标，使用完需要 Close
type Rows interface {
	result.Cursor
	Close() error
}

// Database 引擎依赖的数据库接口
type Database interface {
	Query(ctx context.Context, stmt *query.Statement) (Rows, error)
	Exec(ctx context.Context, stmt *query.Statement) (*ExecResult, error)
	Dialect() schema.Dialect
	Close() error
}

type SQL struct {
	db      *sql.DB
	dialect schema.Dialect
}

// NewSQLWithOptions 按配置打开连接并 ping
func NewSQLWithOptions(options *SQLOptions) (*SQL, error) {
	dsn, err := options.dataSourceName()
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if options.Gorm {
		db, err = openGorm(options.Driver, dsn)
	} else {
		driverName := options.Driver
		if driverName == string(schema.DialectSQLite) {
			driverName = SQLiteDriverName
		}
		db, err = sql.Open(driverName, dsn)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s failed", options.Driver)
	}

	if options.MaxConns > 0 {
		db.SetMaxOpenConns(options.MaxConns)
	}
	if options.MaxIdle > 0 {
		db.SetMaxIdleConns(options.MaxIdle)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping %s failed", options.Driver)
	}

	return &SQL{db: db, dialect: schema.Dialect(options.Driver)}, nil
}

// NewSQL 包装外部已打开的连接
func NewSQL(db *sql.DB, dialect schema.Dialect) *SQL {
	return &SQL{db: db, dialect: dialect}
}

// NewSQLFromGorm 复用应用已有的 gorm 连接
func NewSQLFromGorm(gdb *gorm.DB) (*SQL, error) {
	db, err := gdb.DB()
	if err != nil {
		return nil, errors.Wrap(err, "gorm.DB failed")
	}

	switch gdb.Dialector.Name() {
	case "mysql":
		return NewSQL(db, schema.DialectMySQL), nil
	case "sqlite", "sqlite3":
		return NewSQL(db, schema.DialectSQLite), nil
	}
	return nil, errors.Errorf("unsupported gorm dialector: %s", gdb.Dialector.Name())
}

func openGorm(driver string, dsn string) (*sql.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case string(schema.DialectMySQL):
		dialector = gormmysql.Open(dsn)
	case string(schema.DialectSQLite):
		dialector = gormsqlite.New(gormsqlite.Config{DriverName: SQLiteDriverName, DSN: dsn})
	default:
		return nil, errors.Errorf("unsupported driver: %s", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	return gdb.DB()
}

func (o *SQLOptions) dataSourceName() (string, error) {
	if o.DSN != "" {
		return o.DSN, nil
	}

	switch o.Driver {
	case string(schema.DialectMySQL):
		config := mysql.NewConfig()
		config.User = o.Username
		config.Passwd = o.Password
		config.Net = "tcp"
		config.Addr = o.Host + ":" + o.Port
		config.DBName = o.Database
		config.Loc = time.Local
		if o.Charset != "" {
			config.Params = map[string]string{"charset": o.Charset}
		}
		return config.FormatDSN(), nil
	case string(schema.DialectSQLite):
		return o.Database, nil
	}
	return "", errors.Errorf("unsupported driver: %s", o.Driver)
}

func (s *SQL) Dialect() schema.Dialect {
	return s.dialect
}

func (s *SQL) DB() *sql.DB {
	return s.db
}

func (s *SQL) Query(ctx context.Context, stmt *query.Statement) (Rows, error) {
	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, err
	}

	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	return &sqlRows{rows: rows, columns: columns}, nil
}

func (s *SQL) Exec(ctx context.Context, stmt *query.Statement) (*ExecResult, error) {
	res, err := s.db.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	// UPDATE 在部分驱动上不支持 LastInsertId
	id, _ := res.LastInsertId()

	return &ExecResult{LastInsertID: id, RowsAffected: affected}, nil
}

// Migrate 为表结构建表，表已存在时不做修改
func (s *SQL) Migrate(ctx context.Context, tables ...*schema.Schema) error {
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, schema.CreateTableSQL(t, s.dialect)); err != nil {
			return errors.Wrapf(err, "failed to create table %s", t.Table)
		}
	}
	return nil
}

func (s *SQL) DropTable(ctx context.Context, t *schema.Schema) error {
	_, err := s.db.ExecContext(ctx, schema.DropTableSQL(t, s.dialect))
	return errors.Wrapf(err, "failed to drop table %s", t.Table)
}

func (s *SQL) Close() error {
	return s.db.Close()
}

type sqlRows struct {
	rows    *sql.Rows
	columns []string
}

// Next 扫描一行到 map，列名即 SELECT 中的别名
func (r *sqlRows) Next() (result.Row, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	values := make([]any, len(r.columns))
	valuePtrs := make([]any, len(r.columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := r.rows.Scan(valuePtrs...); err != nil {
		return nil, err
	}

	row := make(result.Row, len(r.columns))
	for i, column := range r.columns {
		row[column] = values[i]
	}
	return row, nil
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}
