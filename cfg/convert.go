package cfg

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	durationType = reflect.TypeOf(time.Duration(0))
	timeType     = reflect.TypeOf(time.Time{})
)

// ConvertTo 将解码得到的通用数据映射到 object，字段名取 cfg tag，没有 tag 时使用字段名
func ConvertTo(src interface{}, object interface{}) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}
	return convertValue(src, rv.Elem(), "")
}

func convertValue(src interface{}, dst reflect.Value, path string) error {
	srcValue := reflect.ValueOf(src)
	if !srcValue.IsValid() {
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return convertValue(src, dst.Elem(), path)
	}

	switch dst.Type() {
	case durationType:
		return convertToDuration(srcValue, dst, path)
	case timeType:
		return convertToTime(srcValue, dst, path)
	}

	switch dst.Kind() {
	case reflect.Struct:
		return convertToStruct(srcValue, dst, path)
	case reflect.Map:
		return convertToMap(srcValue, dst, path)
	case reflect.Slice:
		return convertToSlice(srcValue, dst, path)
	case reflect.Interface:
		if dst.Type().NumMethod() == 0 {
			dst.Set(srcValue)
			return nil
		}
	case reflect.String:
		switch srcValue.Kind() {
		case reflect.String:
			dst.SetString(srcValue.String())
		default:
			dst.SetString(fmt.Sprint(src))
		}
		return nil
	case reflect.Bool:
		if srcValue.Kind() == reflect.String {
			b, err := strconv.ParseBool(srcValue.String())
			if err != nil {
				return errors.Wrapf(err, "invalid bool value at %s", path)
			}
			dst.SetBool(b)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if srcValue.Kind() == reflect.String {
			return convertNumericString(srcValue.String(), dst, path)
		}
	}

	if srcValue.Type().AssignableTo(dst.Type()) {
		dst.Set(srcValue)
		return nil
	}
	if isNumeric(srcValue.Kind()) && isNumeric(dst.Kind()) {
		dst.Set(srcValue.Convert(dst.Type()))
		return nil
	}

	return errors.Errorf("cannot convert %v to %v at %s", srcValue.Type(), dst.Type(), path)
}

func isNumeric(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func convertNumericString(s string, dst reflect.Value, path string) error {
	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 0, dst.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "invalid int value at %s", path)
		}
		dst.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(s, 0, dst.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "invalid uint value at %s", path)
		}
		dst.SetUint(u)
	default:
		f, err := strconv.ParseFloat(s, dst.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "invalid float value at %s", path)
		}
		dst.SetFloat(f)
	}
	return nil
}

// convertToDuration 字符串按 time.ParseDuration 解析，整数视为纳秒，浮点数视为秒
func convertToDuration(src, dst reflect.Value, path string) error {
	switch src.Kind() {
	case reflect.String:
		d, err := time.ParseDuration(src.String())
		if err != nil {
			return errors.Wrapf(err, "invalid duration at %s", path)
		}
		dst.SetInt(int64(d))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dst.SetInt(src.Int())
	case reflect.Float32, reflect.Float64:
		dst.SetInt(int64(src.Float() * float64(time.Second)))
	default:
		return errors.Errorf("cannot convert %v to time.Duration at %s", src.Type(), path)
	}
	return nil
}

func convertToTime(src, dst reflect.Value, path string) error {
	switch src.Kind() {
	case reflect.String:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, src.String()); err == nil {
				dst.Set(reflect.ValueOf(t))
				return nil
			}
		}
		return errors.Errorf("invalid time %q at %s", src.String(), path)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dst.Set(reflect.ValueOf(time.Unix(src.Int(), 0)))
		return nil
	case reflect.Struct:
		if src.Type() == timeType {
			dst.Set(src)
			return nil
		}
	}
	return errors.Errorf("cannot convert %v to time.Time at %s", src.Type(), path)
}

func convertToStruct(src, dst reflect.Value, path string) error {
	if src.Kind() != reflect.Map {
		return errors.Errorf("expected a map at %s, got %v", path, src.Type())
	}

	dstType := dst.Type()
	for i := 0; i < dstType.NumField(); i++ {
		field := dstType.Field(i)
		fieldValue := dst.Field(i)
		if !fieldValue.CanSet() {
			continue
		}

		name := fieldName(field)
		if name == "-" {
			continue
		}

		value := lookup(src, name)
		if !value.IsValid() {
			continue
		}
		if err := convertValue(value.Interface(), fieldValue, join(path, name)); err != nil {
			return err
		}
	}
	return nil
}

func fieldName(field reflect.StructField) string {
	if tag := strings.Split(field.Tag.Get("cfg"), ",")[0]; tag != "" {
		return tag
	}
	return field.Name
}

// lookup 优先精确匹配，其次忽略大小写匹配
func lookup(src reflect.Value, name string) reflect.Value {
	var fallback reflect.Value
	iter := src.MapRange()
	for iter.Next() {
		key := fmt.Sprint(iter.Key().Interface())
		if key == name {
			return iter.Value()
		}
		if !fallback.IsValid() && strings.EqualFold(key, name) {
			fallback = iter.Value()
		}
	}
	return fallback
}

func convertToMap(src, dst reflect.Value, path string) error {
	if src.Kind() != reflect.Map {
		return errors.Errorf("expected a map at %s, got %v", path, src.Type())
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMap(dst.Type()))
	}

	keyType := dst.Type().Key()
	iter := src.MapRange()
	for iter.Next() {
		key := reflect.New(keyType).Elem()
		if err := convertValue(iter.Key().Interface(), key, path); err != nil {
			return err
		}
		value := reflect.New(dst.Type().Elem()).Elem()
		if err := convertValue(iter.Value().Interface(), value, join(path, fmt.Sprint(iter.Key().Interface()))); err != nil {
			return err
		}
		dst.SetMapIndex(key, value)
	}
	return nil
}

func convertToSlice(src, dst reflect.Value, path string) error {
	if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
		return errors.Errorf("expected a list at %s, got %v", path, src.Type())
	}

	length := src.Len()
	dst.Set(reflect.MakeSlice(dst.Type(), length, length))
	for i := 0; i < length; i++ {
		if err := convertValue(src.Index(i).Interface(), dst.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
