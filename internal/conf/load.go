// Copyright 2026 EMQ Technologies Co., Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

const Separator = "__"

// LoadConfigFromPath reads a yaml file into c. Environment variables named
// <FILE>__<KEY>__<SUBKEY> override the file content, where FILE is the upper
// cased file name without extension.
func LoadConfigFromPath(p string, c interface{}) error {
	b, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	return LoadConfigFromBytes(getPrefix(p), b, c, os.Environ())
}

// LoadConfigFromBytes decodes the yaml content into c, applying the overrides
// from variables that carry the prefix.
func LoadConfigFromBytes(prefix string, b []byte, c interface{}, variables []string) error {
	configMap := make(map[string]interface{})
	err := yaml.Unmarshal(b, &configMap)
	if err != nil {
		return errorx.NewWithCode(errorx.ConfKeyError, fmt.Sprintf("invalid yaml: %v", err))
	}
	configs := normalize(configMap)
	if prefix != "" {
		if err := process(configs, variables, prefix); err != nil {
			return err
		}
	}
	return decode(configs, c)
}

func decode(configs map[string]interface{}, c interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           c,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(configs); err != nil {
		return errorx.NewWithCode(errorx.ConfKeyError, err.Error())
	}
	return nil
}

func getPrefix(p string) string {
	file := filepath.Base(p)
	return strings.ToUpper(strings.TrimSuffix(file, filepath.Ext(file)))
}

func process(configMap map[string]interface{}, variables []string, prefix string) error {
	p := prefix + Separator
	for _, e := range variables {
		if !strings.HasPrefix(e, p) {
			continue
		}
		pair := strings.SplitN(e, "=", 2)
		if len(pair) != 2 {
			return errorx.NewWithCode(errorx.ConfKeyError, "wrong format of variable")
		}
		keys := nameToKeys(strings.TrimPrefix(pair[0], p))
		if err := handle(configMap, keys, pair[1]); err != nil {
			return err
		}
		Log.Infof("Set config '%s.%s' to '%s' by environment variable", strings.ToLower(prefix), strings.Join(keys, "."), pair[1])
	}
	return nil
}

func handle(conf map[string]interface{}, keysLeft []string, val string) error {
	key := strings.ToLower(keysLeft[0])
	if len(keysLeft) == 1 {
		conf[key] = getValueType(val)
		return nil
	}
	if v, ok := conf[key]; ok {
		casted, castSuccess := v.(map[string]interface{})
		if !castSuccess {
			return errorx.NewWithCode(errorx.ConfKeyError, fmt.Sprintf("config key %s is not a map", key))
		}
		return handle(casted, keysLeft[1:], val)
	}
	next := make(map[string]interface{})
	conf[key] = next
	return handle(next, keysLeft[1:], val)
}

func nameToKeys(key string) []string {
	return strings.Split(strings.ToLower(key), Separator)
}

func getValueType(val string) interface{} {
	val = strings.Trim(val, " ")
	if strings.HasPrefix(val, "[") && strings.HasSuffix(val, "]") {
		val = strings.ReplaceAll(val, "[", "")
		val = strings.ReplaceAll(val, "]", "")
		vals := strings.Split(val, ",")
		var ret []interface{}
		for _, v := range vals {
			ret = append(ret, getValueType(v))
		}
		return ret
	} else if i, err := strconv.ParseInt(val, 10, 64); err == nil {
		return i
	} else if b, err := strconv.ParseBool(val); err == nil {
		return b
	} else if f, err := strconv.ParseFloat(val, 64); err == nil {
		return f
	}
	return val
}

func normalize(m map[string]interface{}) map[string]interface{} {
	res := make(map[string]interface{})
	for k, v := range m {
		lowered := strings.ToLower(k)
		switch casted := v.(type) {
		case map[string]interface{}:
			res[lowered] = normalize(casted)
		case []interface{}:
			res[lowered] = normalizeList(casted)
		default:
			res[lowered] = v
		}
	}
	return res
}

func normalizeList(l []interface{}) []interface{} {
	res := make([]interface{}, len(l))
	for i, v := range l {
		if casted, ok := v.(map[string]interface{}); ok {
			res[i] = normalize(casted)
		} else {
			res[i] = v
		}
	}
	return res
}
