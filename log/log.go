package log

import (
	"os"

	"github.com/hatlonely/tinymodel/log/logger"
)

type Logger = logger.Logger

type SLogOptions = logger.SLogOptions

var defaultLogger logger.Logger

func init() {
	// 默认向终端输出 text 格式日志
	l, err := logger.NewSLog(os.Stdout, &logger.SLogOptions{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	defaultLogger = l
}

func Default() logger.Logger {
	return defaultLogger
}

// NewLoggerWithOptions options 为空时返回默认日志器
func NewLoggerWithOptions(options *SLogOptions) (logger.Logger, error) {
	if options == nil {
		return defaultLogger, nil
	}
	return logger.NewSLogWithOptions(options)
}
