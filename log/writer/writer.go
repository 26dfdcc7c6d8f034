package writer

import (
	"io"

	"github.com/pkg/errors"
)

// Writer 日志输出器接口
type Writer interface {
	io.Writer
	io.Closer
}

// WriterOptions 输出器配置，Type 决定使用哪一组选项
//
//	output:
//	  type: file
//	  file:
//	    path: log/tinymodel.log
type WriterOptions struct {
	Type    string                `cfg:"type" def:"console" validate:"omitempty,oneof=console file multi"`
	Console *ConsoleWriterOptions `cfg:"console"`
	File    *FileWriterOptions    `cfg:"file"`
	Writers []*WriterOptions      `cfg:"writers"`
}

// NewWriterWithOptions 按类型创建输出器，类型为空时输出到 stdout
func NewWriterWithOptions(options *WriterOptions) (Writer, error) {
	if options == nil {
		options = &WriterOptions{}
	}

	var w Writer
	var err error
	switch options.Type {
	case "", "console":
		w, err = NewConsoleWriterWithOptions(options.Console)
	case "file":
		w, err = NewFileWriterWithOptions(options.File)
	case "multi":
		w, err = NewMultiWriterWithOptions(options.Writers)
	default:
		return nil, errors.Errorf("unsupported writer type: %s", options.Type)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}
