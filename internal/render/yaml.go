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
	"io"

	"gopkg.in/yaml.v3"
)

// YamlRowWriter prints every row as its own YAML document. Rows are encoded
// through yaml.Node mappings so the columns keep their result set order.
type YamlRowWriter struct {
	enc     *yaml.Encoder
	columns []string
	wrote   bool
}

func NewYamlRowWriter(w io.Writer) *YamlRowWriter {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return &YamlRowWriter{
		enc: enc,
	}
}

func (yw *YamlRowWriter) Open(columns []string) error {
	yw.columns = columns
	return nil
}

func (yw *YamlRowWriter) WriteRow(values []any) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for idx, name := range yw.columns {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: name}
		valNode := &yaml.Node{}
		if values[idx] == nil {
			valNode.Kind = yaml.ScalarNode
			valNode.Tag = "!!null"
			valNode.Value = "null"
		} else if err := valNode.Encode(jsonValue(values[idx])); err != nil {
			return fmt.Errorf("error encoding column \"%s\": %w", name, err)
		}
		doc.Content = append(doc.Content, keyNode, valNode)
	}
	if err := yw.enc.Encode(doc); err != nil {
		return fmt.Errorf("error writing row: %w", err)
	}
	yw.wrote = true
	return nil
}

func (yw *YamlRowWriter) Close() error {
	// closing an encoder that never emitted a document makes it emit a bare
	// stream end and fail
	if !yw.wrote {
		return nil
	}
	return yw.enc.Close()
}
