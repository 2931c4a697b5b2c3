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

package export

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Enybeatz/psycopg/internal/render"
)

// COPY text escaping for delimiter and line break characters embedded in
// values.
var copyTextEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"\t", "\\t",
	"\n", "\\n",
	"\r", "\\r",
)

// buildMaskRules resolves --mask entries of the form "column" or
// "column:rule" against the result set columns. A bare column name gets the
// default rule which stars out the whole value.
func buildMaskRules(entries []string, columns []string) (map[int]string, error) {
	rules := make(map[int]string, len(entries))
	for _, entry := range entries {
		name, rule, found := strings.Cut(entry, ":")
		if !found {
			rule = render.MDefault
		}
		if !isValidMaskRule(rule) {
			return nil, fmt.Errorf("unknown masking rule \"%s\" for column \"%s\"", rule, name)
		}
		idx := slices.Index(columns, name)
		if idx == -1 {
			return nil, fmt.Errorf("masked column \"%s\" is not in the result set", name)
		}
		rules[idx] = rule
	}
	return rules, nil
}

func isValidMaskRule(rule string) bool {
	switch rule {
	case render.MPassword, render.MName, render.MAddress, render.MEmail, render.MMobile,
		render.MTelephone, render.MID, render.MCreditCard, render.MURL, render.MDefault:
		return true
	}
	return false
}

// encodeRow renders one row as a COPY text line. NULL stays \N and is never
// masked, everything else is stringified, masked when a rule matches the
// column, and escaped.
func (j *job) encodeRow(values []any) ([]byte, error) {
	buf := j.lineBuf
	buf.Reset()
	for idx, v := range values {
		if idx > 0 {
			buf.WriteByte('\t')
		}
		if v == nil {
			buf.WriteString(`\N`)
			continue
		}
		s := render.ValueToString(v)
		if rule, ok := j.masks[idx]; ok {
			masked, err := render.Masking(j.masker, rule, s)
			if err != nil {
				return nil, fmt.Errorf("cannot mask column \"%s\": %w", j.columns[idx], err)
			}
			s = masked
		}
		buf.WriteString(copyTextEscaper.Replace(s))
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

