package cfg

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

func decode(data []byte, format Format) (map[string]interface{}, error) {
	result := map[string]interface{}{}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &result); err != nil {
			return nil, errors.Wrap(err, "failed to decode YAML")
		}
	case FormatJSON:
		if len(strings.TrimSpace(string(data))) == 0 {
			return result, nil
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, errors.Wrap(err, "failed to decode JSON")
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &result); err != nil {
			return nil, errors.Wrap(err, "failed to decode TOML")
		}
	case FormatINI:
		return decodeINI(data)
	default:
		return nil, errors.Errorf("unsupported format: %s", format)
	}

	if result == nil {
		result = map[string]interface{}{}
	}
	return result, nil
}

// decodeINI 默认 section 的键放在顶层，其它 section 作为嵌套 map
// section 名中的点号表示更深的层级，例如 [database.gorm]
func decodeINI(data []byte) (map[string]interface{}, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         true,
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode INI")
	}

	result := map[string]interface{}{}
	for _, section := range file.Sections() {
		target := result
		if section.Name() != ini.DefaultSection {
			for _, part := range strings.Split(section.Name(), ".") {
				next, ok := target[part].(map[string]interface{})
				if !ok {
					next = map[string]interface{}{}
					target[part] = next
				}
				target = next
			}
		}
		for _, key := range section.Keys() {
			target[key.Name()] = parseINIValue(key.String())
		}
	}
	return result, nil
}

func parseINIValue(value string) interface{} {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}
