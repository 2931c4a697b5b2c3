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

package ioutils

import "io"

// NewGzipPipe connects a counting gzip writer to a counting reader through an
// in memory pipe. The writer side counts original bytes, the reader side
// compressed bytes. Closing the reader unblocks a producer stuck in Write
// when the consumer gave up early.
func NewGzipPipe(usePgzip bool) (*Writer, *Reader) {
	pr, pw := io.Pipe()
	return NewWriter(NewGzipWriter(pw, usePgzip)), NewReader(pr)
}

// NewPipe is NewGzipPipe without the compression layer.
func NewPipe() (*Writer, *Reader) {
	pr, pw := io.Pipe()
	return NewWriter(pw), NewReader(pr)
}
