// Copyright 2023 Greenmask
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

package config

import (
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	gostr "github.com/xhit/go-str2duration/v2"
)

// StringToHumanDurationHookFunc converts strings like "90s", "1h30m" or
// "2d12h" into time.Duration, accepting the day and week units the standard
// parser rejects.
func StringToHumanDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return gostr.ParseDuration(data.(string))
	}
}

// DecodeHook is the hook chain applied to every config unmarshal.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		StringToHumanDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
