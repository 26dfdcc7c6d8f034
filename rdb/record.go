package rdb

import (
	"reflect"
	"strings"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

// Record 待插入的一行数据，键为列名
type Record map[string]any

// RecordFromStruct 将带 rdb tag 的结构体转换为 Record
//
// nil 指针字段视为未提供，带 omitempty 选项的零值字段同样视为未提供；
// time.Time 按 timestamp 列的格式输出，零值视为未提供；切片字段（子集合）会被忽略
func RecordFromStruct(v any) Record {
	record := Record{}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return record
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return record
	}

	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		name := strings.ToLower(field.Name)
		omitEmpty := false
		if tag := field.Tag.Get("rdb"); tag != "" {
			if tag == "-" {
				continue
			}
			parts := strings.Split(tag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				omitEmpty = omitEmpty || opt == "omitempty"
			}
		}

		value := rv.Field(i)
		if omitEmpty && value.IsZero() {
			continue
		}
		if value.Kind() == reflect.Ptr {
			if value.IsNil() {
				continue
			}
			value = value.Elem()
		}
		if value.Kind() == reflect.Slice && value.Type().Elem().Kind() != reflect.Uint8 {
			continue
		}

		if t, ok := value.Interface().(time.Time); ok {
			if t.IsZero() {
				continue
			}
			record[name] = t.UTC().Format(timestampLayout)
			continue
		}
		record[name] = value.Interface()
	}
	return record
}
