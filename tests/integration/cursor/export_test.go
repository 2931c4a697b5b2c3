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

package cursor

import (
	"context"
	"io"
	"strings"

	psycopg "github.com/Enybeatz/psycopg"
	"github.com/Enybeatz/psycopg/internal/export"
	"github.com/Enybeatz/psycopg/internal/storages"
	"github.com/Enybeatz/psycopg/internal/storages/directory"
	"github.com/Enybeatz/psycopg/internal/utils/exportstatus"
	"github.com/Enybeatz/psycopg/internal/utils/ioutils"
)

func (s *CursorSuite) readPart(ctx context.Context, st *directory.Storage, exportId, name string) []string {
	obj, err := st.SubStorage(exportId, true).GetObject(ctx, name)
	s.Require().NoError(err)
	gz, err := ioutils.NewGzipReader(obj, false)
	s.Require().NoError(err)
	data, err := io.ReadAll(gz)
	s.Require().NoError(err)
	s.Require().NoError(gz.Close())
	if len(data) == 0 {
		return nil
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func (s *CursorSuite) TestExportRoundTrip() {
	ctx := context.Background()
	conn, cur := s.openCursor(ctx, psycopg.WithStreamSize(2))
	defer conn.Close(ctx)

	st, err := directory.NewStorage(&directory.Config{Path: s.T().TempDir()})
	s.Require().NoError(err)

	mf, err := export.Run(ctx, cur, st, &export.Options{
		Query:       "select film_id, title, director, email from films order by film_id",
		ExportId:    "roundtrip",
		RowsPerPart: 2,
		Compression: true,
	})
	s.Require().NoError(err)
	s.Require().Equal(int64(5), mf.RowCount)
	s.Require().Equal([]string{"film_id", "title", "director", "email"}, mf.Columns)
	s.Require().Len(mf.Parts, 3)
	s.Require().Len(mf.Checksum, 16)

	// The manifest lands in the storage last, so its presence marks the
	// export as done.
	sub := st.SubStorage("roundtrip", true)
	status, stored, err := exportstatus.GetExportStatusAndManifest(ctx, sub)
	s.Require().NoError(err)
	s.Require().Equal(exportstatus.DoneStatusName, status)
	s.Require().Equal(mf.Checksum, stored.Checksum)

	files, err := storages.Walk(ctx, sub, "")
	s.Require().NoError(err)
	s.Require().ElementsMatch(
		[]string{"0.dat.gz", "1.dat.gz", "2.dat.gz", export.MetadataObjectName},
		files,
	)

	lines := s.readPart(ctx, st, "roundtrip", "0.dat.gz")
	s.Require().Len(lines, 2)
	s.Require().Equal("1\tacademy dinosaur\tkirsten torn\tbox.office@example.com", lines[0])
	s.Require().Equal("2\tace goldfinger\tpierre berg\tsales@example.com", lines[1])

	// NULLs travel as \N in the COPY text framing.
	lines = s.readPart(ctx, st, "roundtrip", "1.dat.gz")
	s.Require().Len(lines, 2)
	s.Require().Equal("3\tadaptation holes\tcamila keaton\t\\N", lines[0])

	lines = s.readPart(ctx, st, "roundtrip", "2.dat.gz")
	s.Require().Len(lines, 1)
	s.Require().Equal("5\tafrican egg\tdustin tarantino\t\\N", lines[0])
}

func (s *CursorSuite) TestExportMasksColumns() {
	ctx := context.Background()
	conn, cur := s.openCursor(ctx)
	defer conn.Close(ctx)

	st, err := directory.NewStorage(&directory.Config{Path: s.T().TempDir()})
	s.Require().NoError(err)

	mf, err := export.Run(ctx, cur, st, &export.Options{
		Query:       "select film_id, title, email from films order by film_id",
		ExportId:    "masked",
		Compression: true,
		MaskColumns: []string{"title", "email:email"},
	})
	s.Require().NoError(err)
	s.Require().Equal(int64(5), mf.RowCount)

	lines := s.readPart(ctx, st, "masked", "0.dat.gz")
	s.Require().Len(lines, 5)

	for _, line := range lines {
		fields := strings.Split(line, "\t")
		s.Require().Len(fields, 3)
		// Default masking rule hides the whole title.
		s.Require().Equal(strings.Repeat("*", len(fields[1])), fields[1])
	}

	// The email rule keeps the domain but not the mailbox.
	fields := strings.Split(lines[0], "\t")
	s.Require().NotEqual("box.office@example.com", fields[2])
	s.Require().True(strings.HasSuffix(fields[2], "@example.com"))

	// NULLs stay NULL, masked or not.
	fields = strings.Split(lines[2], "\t")
	s.Require().Equal(`\N`, fields[2])
}
