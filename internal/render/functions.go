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

package render

import (
	"fmt"
	"maps"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/ggwhite/go-masker"
	"github.com/go-faker/faker/v4"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	MPassword   string = "password"
	MName       string = "name"
	MAddress    string = "addr"
	MEmail      string = "email"
	MMobile     string = "mobile"
	MTelephone  string = "tel"
	MID         string = "id"
	MCreditCard string = "credit_cart"
	MURL        string = "url"
	MDefault    string = "default"
)

// FuncMap returns the function set row templates are parsed with: the sprig
// library plus NULL handling, json path helpers and data masking functions.
func FuncMap() template.FuncMap {
	m := &masker.Masker{}
	faker.SetGenerateUniqueValues(false)

	functions := template.FuncMap{
		"null":        getNullValue,
		"isNull":      valueIsNull,
		"isNotNull":   valueIsNotNull,
		"sqlCoalesce": sqlCoalesce,

		"jsonExists":     jsonExists,
		"mustJsonGet":    mustJsonGet,
		"jsonGet":        jsonGet,
		"jsonGetRaw":     jsonGetRaw,
		"jsonSet":        mustJsonSet,
		"jsonDelete":     mustJsonDelete,
		"jsonIsValid":    jsonIsValid,
		"toJsonRawValue": toJsonRawValue,

		"masking": func(dataType string, v string) (string, error) { return Masking(m, dataType, v) },

		"toPgString": ValueToString,

		"fakerEmail":          faker.Email,
		"fakerUsername":       faker.Username,
		"fakerName":           faker.Name,
		"fakerFirstName":      faker.FirstName,
		"fakerLastName":       faker.LastName,
		"fakerPhoneNumber":    faker.Phonenumber,
		"fakerUUIDHyphenated": faker.UUIDHyphenated,
		"fakerWord":           faker.Word,
	}

	tm := make(template.FuncMap)
	maps.Copy(tm, sprig.FuncMap())
	maps.Copy(tm, functions)
	return tm
}

// Masking obfuscates v according to the masking rule name. The rule names
// follow the go-masker built-in maskers, "default" replaces every character
// with an asterisk.
func Masking(m *masker.Masker, dataType string, v string) (string, error) {
	switch dataType {
	case MPassword:
		return m.Password(v), nil
	case MName:
		return m.Name(v), nil
	case MAddress:
		return m.Address(v), nil
	case MEmail:
		return m.Email(v), nil
	case MMobile:
		return m.Mobile(v), nil
	case MID:
		return m.ID(v), nil
	case MTelephone:
		return m.Telephone(v), nil
	case MCreditCard:
		return m.CreditCard(v), nil
	case MURL:
		return m.URL(v), nil
	case MDefault:
		return strings.Repeat("*", len(v)), nil
	default:
		return "", fmt.Errorf("wrong type masking \"%s\"", dataType)
	}
}

func getNullValue() NullType {
	return NullValue
}

func valueIsNull(v any) bool {
	vv, ok := v.(NullType)
	if !ok {
		return false
	}
	return vv == NullValue
}

func valueIsNotNull(v any) bool {
	return !valueIsNull(v)
}

func sqlCoalesce(vv ...any) any {
	for _, v := range vv {
		if _, ok := v.(NullType); ok {
			continue
		}
		return v
	}
	return NullValue
}

func jsonExists(path string, data string) bool {
	return gjson.Get(data, path).Exists()
}

func mustJsonGet(path string, data string) (interface{}, error) {
	res := gjson.Get(data, path)
	if !res.Exists() {
		return nil, fmt.Errorf("json path \"%s\" does not exist", path)
	}
	return res.Value(), nil
}

func jsonGet(path string, data string) interface{} {
	return gjson.Get(data, path).Value()
}

func jsonGetRaw(path string, data string) string {
	return gjson.Get(data, path).Raw
}

func mustJsonSet(path string, v any, data string) (string, error) {
	return sjson.Set(data, path, v)
}

func mustJsonDelete(path string, data string) (string, error) {
	return sjson.Delete(data, path)
}

func jsonIsValid(v string) bool {
	return gjson.Valid(v)
}

func toJsonRawValue(v any) (string, error) {
	res, err := sjson.Set("", "a", v)
	if err != nil {
		return "", fmt.Errorf("error encoding %+v value into json type: %w", v, err)
	}
	return gjson.Get(res, "a").Raw, nil
}
