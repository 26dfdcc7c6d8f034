package cfg

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Format 配置文件格式
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatINI  Format = "ini"
)

// FormatOf 根据文件扩展名推断格式
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".ini":
		return FormatINI, nil
	}
	return "", errors.Errorf("unsupported config file extension: %q", path)
}

// Load 读取配置文件并填充到 object
//
// 处理顺序：展开 ${VAR} 环境变量，按扩展名解码，按 cfg tag 映射字段，
// 填充 def tag 默认值，最后使用 validate tag 校验
func Load(path string, object interface{}) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}

	if err := LoadData(data, format, object); err != nil {
		return errors.WithMessagef(err, "failed to load config file %s", path)
	}
	return nil
}

// LoadData 从内存数据加载配置
func LoadData(data []byte, format Format, object interface{}) error {
	if object == nil {
		return errors.New("object cannot be nil")
	}

	raw, err := decode([]byte(os.ExpandEnv(string(data))), format)
	if err != nil {
		return err
	}

	if err := ConvertTo(raw, object); err != nil {
		return errors.WithMessage(err, "failed to convert config")
	}

	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "failed to set defaults")
	}

	if err := ValidateStruct(object); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	return nil
}
