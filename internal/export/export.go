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

// Package export streams query results into object storage. Rows are pulled
// through a server side portal, rendered as COPY text lines, optionally
// masked, and written as gzip parts of a bounded row count. A metadata object
// describing sizes, row counts and checksums is written last, so its presence
// marks a completed export.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"time"

	"github.com/ggwhite/go-masker"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"

	psycopg "github.com/Enybeatz/psycopg"
	"github.com/Enybeatz/psycopg/internal/storages"
	"github.com/Enybeatz/psycopg/internal/utils/ioutils"
)

const MetadataObjectName = "metadata.json"

type Options struct {
	Query       string
	ExportId    string
	RowsPerPart int64
	Compression bool
	UsePgzip    bool
	MaskColumns []string
}

type PartInfo struct {
	Name           string `json:"name" yaml:"name"`
	RowCount       int64  `json:"row_count" yaml:"row_count"`
	OriginalSize   int64  `json:"original_size" yaml:"original_size"`
	CompressedSize int64  `json:"compressed_size" yaml:"compressed_size"`
	Checksum       string `json:"checksum" yaml:"checksum"`
}

type Manifest struct {
	ExportId       string      `json:"export_id" yaml:"export_id"`
	Query          string      `json:"query" yaml:"query"`
	Columns        []string    `json:"columns" yaml:"columns"`
	RowCount       int64       `json:"row_count" yaml:"row_count"`
	OriginalSize   int64       `json:"original_size" yaml:"original_size"`
	CompressedSize int64       `json:"compressed_size" yaml:"compressed_size"`
	Checksum       string      `json:"checksum" yaml:"checksum"`
	Parts          []*PartInfo `json:"parts" yaml:"parts"`
	StartedAt      time.Time   `json:"started_at" yaml:"started_at"`
	CompletedAt    time.Time   `json:"completed_at" yaml:"completed_at"`
}

type job struct {
	cur *psycopg.Cursor
	st  storages.Storager
	opt *Options

	stream  *psycopg.RowStream
	columns []string
	masks   map[int]string
	masker  *masker.Masker

	pending []any
	hasRow  bool
	typeErr error

	lineBuf   *bytes.Buffer
	totalHash hash.Hash64
	partHash  hash.Hash64
}

// Run executes opt.Query on the cursor and writes the parts and the metadata
// object under the export id prefix of st. The returned manifest is the same
// document that was stored.
func Run(ctx context.Context, cur *psycopg.Cursor, st storages.Storager, opt *Options) (*Manifest, error) {
	j := &job{
		cur:       cur,
		st:        st,
		opt:       opt,
		masker:    &masker.Masker{},
		lineBuf:   new(bytes.Buffer),
		totalHash: murmur3.New64(),
		partHash:  murmur3.New64(),
	}
	return j.run(ctx)
}

func (j *job) run(ctx context.Context) (*Manifest, error) {
	if j.opt.Query == "" {
		return nil, fmt.Errorf("export query cannot be empty")
	}
	exportId := j.opt.ExportId
	if exportId == "" {
		exportId = uuid.NewString()
	}
	st := j.st.SubStorage(exportId, true)

	stream, err := j.cur.Stream(ctx, j.opt.Query, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot open export stream: %w", err)
	}
	j.stream = stream
	defer func() {
		if err := stream.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing export stream")
		}
	}()

	fields := stream.Fields()
	columns := make([]string, len(fields))
	for idx, f := range fields {
		columns[idx] = f.Name
	}
	j.columns = columns

	masks, err := buildMaskRules(j.opt.MaskColumns, columns)
	if err != nil {
		return nil, err
	}
	j.masks = masks

	manifest := &Manifest{
		ExportId:  exportId,
		Query:     j.opt.Query,
		Columns:   columns,
		StartedAt: time.Now(),
	}

	if !j.advance() {
		if j.typeErr != nil {
			return nil, j.typeErr
		}
		if err := stream.Err(); err != nil {
			return nil, fmt.Errorf("error fetching rows: %w", err)
		}
	}

	for partIdx := 0; ; partIdx++ {
		if !j.hasRow && partIdx > 0 {
			break
		}
		part, err := j.dumpPart(ctx, st, partIdx)
		if err != nil {
			return nil, err
		}
		manifest.Parts = append(manifest.Parts, part)
		manifest.RowCount += part.RowCount
		manifest.OriginalSize += part.OriginalSize
		manifest.CompressedSize += part.CompressedSize
		if !j.hasRow {
			break
		}
	}
	manifest.Checksum = fmt.Sprintf("%016x", j.totalHash.Sum64())
	manifest.CompletedAt = time.Now()

	data, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("cannot encode export metadata: %w", err)
	}
	if err := st.PutObject(ctx, MetadataObjectName, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("cannot write export metadata: %w", err)
	}
	return manifest, nil
}

// dumpPart pumps up to RowsPerPart rows into one storage object. The producer
// and the storage writer run concurrently and meet in an in memory pipe, the
// same way table dumping meets storage uploads.
func (j *job) dumpPart(ctx context.Context, st storages.Storager, partIdx int) (*PartInfo, error) {
	var (
		w    *ioutils.Writer
		r    *ioutils.Reader
		name string
	)
	if j.opt.Compression {
		name = fmt.Sprintf("%d.dat.gz", partIdx)
		w, r = ioutils.NewGzipPipe(j.opt.UsePgzip)
	} else {
		name = fmt.Sprintf("%d.dat", partIdx)
		w, r = ioutils.NewPipe()
	}
	j.partHash.Reset()
	part := &PartInfo{Name: name}

	eg, gtx := errgroup.WithContext(ctx)
	eg.Go(j.writer(gtx, st, name, r))
	eg.Go(j.producer(gtx, w, part))

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	part.OriginalSize = w.GetCount()
	part.CompressedSize = r.GetCount()
	part.Checksum = fmt.Sprintf("%016x", j.partHash.Sum64())
	return part, nil
}

// writer - writes the part data to the storage
func (j *job) writer(ctx context.Context, st storages.Storager, name string, r io.ReadCloser) func() error {
	return func() error {
		defer func() {
			if err := r.Close(); err != nil {
				log.Warn().Err(err).Msg("error closing export part reader")
			}
		}()
		if err := st.PutObject(ctx, name, r); err != nil {
			return fmt.Errorf("cannot write object: %w", err)
		}
		return nil
	}
}

// producer - encodes rows into the pipe until the part row cap or the end of
// the result set
func (j *job) producer(ctx context.Context, w io.WriteCloser, part *PartInfo) func() error {
	return func() error {
		defer func() {
			if err := w.Close(); err != nil {
				log.Warn().Err(err).Msg("error closing export part writer")
			}
		}()
		for j.hasRow {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			line, err := j.encodeRow(j.pending)
			if err != nil {
				return err
			}
			if _, err := w.Write(line); err != nil {
				return errors.Wrap(err, "cannot write row")
			}
			j.partHash.Write(line)
			j.totalHash.Write(line)
			part.RowCount++
			if !j.advance() {
				if j.typeErr != nil {
					return j.typeErr
				}
				if err := j.stream.Err(); err != nil {
					return fmt.Errorf("error fetching rows: %w", err)
				}
				break
			}
			if j.opt.RowsPerPart > 0 && part.RowCount == j.opt.RowsPerPart {
				break
			}
		}
		return nil
	}
}

// advance pulls the next row and keeps it pending so part boundaries can be
// decided before the row is consumed.
func (j *job) advance() bool {
	if j.stream.Next() {
		values, ok := j.stream.Row().([]any)
		if !ok {
			j.typeErr = fmt.Errorf("export requires rows decoded as value slices, got %T", j.stream.Row())
			j.pending = nil
			j.hasRow = false
			return false
		}
		j.pending = values
		j.hasRow = true
		return true
	}
	j.pending = nil
	j.hasRow = false
	return false
}
