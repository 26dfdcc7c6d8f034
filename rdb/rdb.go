package rdb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/hatlonely/tinymodel/rdb/result"
	"github.com/hatlonely/tinymodel/rdb/schema"
)

var (
	ErrInvalidConditions = errors.New("invalid conditions")
	ErrInvalidData       = errors.New("invalid data")
)

// Status 调用结果状态
type Status int

const (
	Success Status = iota
	InvalidData
	InvalidConditions
	InternalError
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case InvalidData:
		return "invalid_data"
	case InvalidConditions:
		return "invalid_conditions"
	case InternalError:
		return "internal_error"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Result 调用结果信封
//
// Entities 只在 Fetch 成功时有值，Affected 只在 Update 成功时有值，
// InsertID 只在 Insert 成功时有值；校验失败时 Errors 记录字段到错误类型的映射
type Result struct {
	Status   Status
	Entities []*result.Entity
	Affected int64
	InsertID int64
	Errors   schema.Errors

	err error
}

// Err 将非成功的结果转换为 error，成功时返回 nil
func (r *Result) Err() error {
	switch r.Status {
	case Success:
		return nil
	case InvalidData:
		return errors.WithMessage(ErrInvalidData, formatErrors(r.Errors))
	case InvalidConditions:
		if r.err != nil {
			return errors.WithMessage(ErrInvalidConditions, r.err.Error())
		}
		return errors.WithMessage(ErrInvalidConditions, formatErrors(r.Errors))
	}
	if r.err != nil {
		return r.err
	}
	return errors.New(r.Status.String())
}

func success() *Result {
	return &Result{Status: Success}
}

func failure(status Status, errs schema.Errors) *Result {
	return &Result{Status: status, Errors: errs}
}

func internal(err error) *Result {
	return &Result{Status: InternalError, err: err}
}

// formatErrors 按字段名排序，保证输出稳定
func formatErrors(errs schema.Errors) string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+string(errs[k]))
	}
	return strings.Join(parts, ", ")
}
