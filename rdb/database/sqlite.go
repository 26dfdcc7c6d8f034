package database

import (
	"database/sql"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteDriverName 注册了 MySQL 兼容函数的 sqlite3 驱动
const SQLiteDriverName = "sqlite3_tinymodel"

const sqliteTimeLayout = "2006-01-02 15:04:05"

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("unix_timestamp", unixTimestamp, true); err != nil {
				return err
			}
			return conn.RegisterFunc("now", now, false)
		},
	})
}

// unixTimestamp 与 MySQL unix_timestamp 一致：日期按 UTC 解析，NULL 返回 NULL
func unixTimestamp(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		if v == nil {
			return nil, nil
		}
		return parseTimestamp(string(v))
	case string:
		return parseTimestamp(v)
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	}
	return nil, errors.Errorf("unix_timestamp: unsupported value %T", value)
}

func now() string {
	return time.Now().UTC().Format(sqliteTimeLayout)
}

var timestampReplacer = strings.NewReplacer("/", "-", ".", "-")

func parseTimestamp(s string) (interface{}, error) {
	if len(s) < len(sqliteTimeLayout) {
		return nil, errors.Errorf("unix_timestamp: invalid time %q", s)
	}

	// 兼容 YYYY/MM/DD HH.MM.SS 等写法
	date := timestampReplacer.Replace(s[:10])
	clock := strings.ReplaceAll(s[11:19], ".", ":")
	t, err := time.ParseInLocation(sqliteTimeLayout, date+" "+clock, time.UTC)
	if err != nil {
		return nil, errors.Wrapf(err, "unix_timestamp: invalid time %q", s)
	}
	return t.Unix(), nil
}
