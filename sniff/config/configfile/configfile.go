// Package configfile reads a YAML config file and presents it as a
// configmap.Getter
package configfile

import (
	"fmt"
	"os"
	"strings"

	"github.com/iotools/iotools/sniff/config/configmap"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is a parsed config file.
//
// Keys are flattened to lower case snake_case, so both
//
//	max_levels: 3
//	max-levels: 3
//
// set the same item. Lists are joined with commas so
//
//	formats: [PDF, BASE64]
//
// is the same as "formats: PDF,BASE64".
type File struct {
	path  string
	items configmap.Simple
}

// check interface
var _ configmap.Getter = (*File)(nil)

// Load reads and parses the config file at path
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	f, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %q", path)
	}
	f.path = path
	return f, nil
}

// Parse parses YAML config data
func Parse(data []byte) (*File, error) {
	var raw map[string]interface{}
	err := yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, err
	}
	f := &File{items: configmap.Simple{}}
	for key, value := range raw {
		s, err := toString(value)
		if err != nil {
			return nil, errors.Wrapf(err, "config item %q", key)
		}
		f.items[normaliseKey(key)] = s
	}
	return f, nil
}

func normaliseKey(key string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "-", "_"))
}

func toString(value interface{}) (string, error) {
	switch x := value.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case []interface{}:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			s, err := toString(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	case map[string]interface{}:
		return "", errors.New("nested sections are not supported")
	default:
		return fmt.Sprint(x), nil
	}
}

// Get a config item
func (f *File) Get(key string) (value string, ok bool) {
	return f.items.Get(key)
}

// Path returns the file the config was loaded from, "" if parsed
// from memory
func (f *File) Path() string {
	return f.path
}
