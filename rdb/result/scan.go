package result

import (
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var timeType = reflect.TypeOf(time.Time{})

// Scan 将实体解码到结构体，字段按 rdb 标签匹配列名
// 子实体集合按 rdb 标签匹配表名，目标可以是结构体切片或结构体指针切片
//
//	type Favourite struct {
//	    FavouriteID int64   `rdb:"favouriteid"`
//	    Things      []Thing `rdb:"things"`
//	}
func (e *Entity) Scan(dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return errors.New("dest must be a pointer to struct")
	}
	return e.scanStruct(rv.Elem())
}

func (e *Entity) scanStruct(rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		name := tagName(field)
		if name == "" {
			continue
		}

		fieldValue := rv.Field(i)
		if value, ok := e.Fields[name]; ok {
			if value == nil {
				continue
			}
			if err := setFieldValue(fieldValue, value); err != nil {
				return errors.WithMessagef(err, "failed to set field %s", name)
			}
			continue
		}

		for _, c := range e.children {
			if c.Table != name {
				continue
			}
			if err := scanCollection(fieldValue, c.Entities); err != nil {
				return errors.WithMessagef(err, "failed to set collection %s", name)
			}
			break
		}
	}
	return nil
}

func scanCollection(fieldValue reflect.Value, entities []*Entity) error {
	if fieldValue.Kind() != reflect.Slice {
		return errors.Errorf("collection field must be a slice, got %v", fieldValue.Type())
	}

	elemType := fieldValue.Type().Elem()
	isPtr := elemType.Kind() == reflect.Ptr
	structType := elemType
	if isPtr {
		structType = elemType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return errors.Errorf("collection element must be a struct, got %v", elemType)
	}

	slice := reflect.MakeSlice(fieldValue.Type(), 0, len(entities))
	for _, entity := range entities {
		elem := reflect.New(structType)
		if err := entity.scanStruct(elem.Elem()); err != nil {
			return err
		}
		if isPtr {
			slice = reflect.Append(slice, elem)
		} else {
			slice = reflect.Append(slice, elem.Elem())
		}
	}
	fieldValue.Set(slice)
	return nil
}

func tagName(field reflect.StructField) string {
	tag := field.Tag.Get("rdb")
	if tag == "-" {
		return ""
	}
	if tag == "" {
		return strings.ToLower(field.Name)
	}
	if idx := strings.Index(tag, ","); idx != -1 {
		return tag[:idx]
	}
	return tag
}

// setFieldValue 实体字段只有 int64、float64、string 三种类型
func setFieldValue(fieldValue reflect.Value, value any) error {
	fieldType := fieldValue.Type()

	if fieldType.Kind() == reflect.Ptr {
		elem := reflect.New(fieldType.Elem())
		if err := setFieldValue(elem.Elem(), value); err != nil {
			return err
		}
		fieldValue.Set(elem)
		return nil
	}

	// timestamp 列重建为 unix 时间戳
	if fieldType == timeType {
		if v, ok := value.(int64); ok {
			fieldValue.Set(reflect.ValueOf(time.Unix(v, 0)))
			return nil
		}
		return errors.Errorf("cannot convert %T to time.Time", value)
	}

	if fieldType.Kind() == reflect.Bool {
		if v, ok := value.(int64); ok {
			fieldValue.SetBool(v != 0)
			return nil
		}
	}

	valueType := reflect.TypeOf(value)
	if valueType.AssignableTo(fieldType) {
		fieldValue.Set(reflect.ValueOf(value))
		return nil
	}

	// string 与数字之间不做隐式转换
	if valueType.Kind() != reflect.String && fieldType.Kind() != reflect.String && valueType.ConvertibleTo(fieldType) {
		fieldValue.Set(reflect.ValueOf(value).Convert(fieldType))
		return nil
	}

	return errors.Errorf("cannot convert %v to %v", valueType, fieldType)
}
