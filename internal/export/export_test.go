package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	psycopg "github.com/Enybeatz/psycopg"
	"github.com/Enybeatz/psycopg/internal/storages"
	"github.com/Enybeatz/psycopg/internal/storages/directory"
	"github.com/Enybeatz/psycopg/internal/testutils"
	"github.com/Enybeatz/psycopg/internal/utils/ioutils"
	mockUtils "github.com/Enybeatz/psycopg/internal/utils/testutils"
)

func newTestStorage(t *testing.T) storages.Storager {
	t.Helper()
	st, err := directory.NewStorage(&directory.Config{Path: t.TempDir()})
	require.NoError(t, err)
	return st
}

func readPart(t *testing.T, st storages.Storager, name string, compressed, usePgzip bool) string {
	t.Helper()
	obj, err := st.GetObject(context.Background(), name)
	require.NoError(t, err)
	var r io.ReadCloser = obj
	if compressed {
		r, err = ioutils.NewGzipReader(obj, usePgzip)
		require.NoError(t, err)
	}
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	return string(data)
}

func partLines(data string) []string {
	trimmed := strings.TrimRight(data, "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func TestRunSinglePart(t *testing.T) {
	conn := testutils.NewConn()
	conn.QueuePortal(testutils.FilmColumns(), testutils.FilmRows(25), "SELECT 25")
	cur := psycopg.NewCursor(conn)
	st := newTestStorage(t)

	manifest, err := Run(context.Background(), cur, st, &Options{
		Query:       "SELECT * FROM film",
		ExportId:    "films",
		Compression: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "films", manifest.ExportId)
	assert.Equal(t, []string{"id", "title", "director", "email"}, manifest.Columns)
	assert.Equal(t, int64(25), manifest.RowCount)
	require.Len(t, manifest.Parts, 1)
	assert.Equal(t, "0.dat.gz", manifest.Parts[0].Name)
	assert.NotEmpty(t, manifest.Checksum)
	assert.Equal(t, manifest.Parts[0].Checksum, manifest.Checksum)
	assert.Greater(t, manifest.OriginalSize, int64(0))
	assert.Greater(t, manifest.CompressedSize, int64(0))
	assert.False(t, manifest.CompletedAt.Before(manifest.StartedAt))

	sub := st.SubStorage("films", true)
	lines := partLines(readPart(t, sub, "0.dat.gz", true, false))
	assert.Len(t, lines, 25)
	assert.True(t, strings.HasPrefix(lines[0], "1\t"))

	stored, err := sub.GetObject(context.Background(), MetadataObjectName)
	require.NoError(t, err)
	defer stored.Close()
	var storedManifest Manifest
	require.NoError(t, json.NewDecoder(stored).Decode(&storedManifest))
	assert.Equal(t, manifest.RowCount, storedManifest.RowCount)
	assert.Equal(t, manifest.Checksum, storedManifest.Checksum)

	assert.Equal(t, 0, conn.OpenPortalCount())
	assert.Equal(t, 0, conn.Unconsumed())
}

func TestRunSplitsParts(t *testing.T) {
	t.Run("with remainder", func(t *testing.T) {
		conn := testutils.NewConn()
		conn.QueuePortal(testutils.FilmColumns(), testutils.FilmRows(25), "SELECT 25")
		cur := psycopg.NewCursor(conn)
		st := newTestStorage(t)

		manifest, err := Run(context.Background(), cur, st, &Options{
			Query:       "SELECT * FROM film",
			ExportId:    "films",
			RowsPerPart: 10,
			Compression: true,
		})
		require.NoError(t, err)

		require.Len(t, manifest.Parts, 3)
		assert.Equal(t, []int64{10, 10, 5}, []int64{
			manifest.Parts[0].RowCount, manifest.Parts[1].RowCount, manifest.Parts[2].RowCount,
		})
		assert.Equal(t, "2.dat.gz", manifest.Parts[2].Name)
		assert.Equal(t, int64(25), manifest.RowCount)

		sub := st.SubStorage("films", true)
		assert.Len(t, partLines(readPart(t, sub, "1.dat.gz", true, false)), 10)
		assert.Len(t, partLines(readPart(t, sub, "2.dat.gz", true, false)), 5)
	})

	t.Run("exact multiple writes no trailing part", func(t *testing.T) {
		conn := testutils.NewConn()
		conn.QueuePortal(testutils.FilmColumns(), testutils.FilmRows(20), "SELECT 20")
		cur := psycopg.NewCursor(conn)
		st := newTestStorage(t)

		manifest, err := Run(context.Background(), cur, st, &Options{
			Query:       "SELECT * FROM film",
			ExportId:    "films",
			RowsPerPart: 10,
			Compression: true,
		})
		require.NoError(t, err)

		require.Len(t, manifest.Parts, 2)
		assert.Equal(t, int64(20), manifest.RowCount)
		sub := st.SubStorage("films", true)
		exists, err := sub.Exists(context.Background(), "2.dat.gz")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestRunEmptyResultSet(t *testing.T) {
	conn := testutils.NewConn()
	conn.QueuePortal(testutils.FilmColumns(), nil, "SELECT 0")
	cur := psycopg.NewCursor(conn)
	st := newTestStorage(t)

	manifest, err := Run(context.Background(), cur, st, &Options{
		Query:       "SELECT * FROM film WHERE false",
		ExportId:    "empty",
		Compression: true,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(0), manifest.RowCount)
	require.Len(t, manifest.Parts, 1)
	assert.Equal(t, int64(0), manifest.Parts[0].RowCount)

	sub := st.SubStorage("empty", true)
	assert.Empty(t, partLines(readPart(t, sub, "0.dat.gz", true, false)))
}

func TestRunWithoutCompression(t *testing.T) {
	conn := testutils.NewConn()
	conn.QueuePortal(testutils.FilmColumns(), testutils.FilmRows(3), "SELECT 3")
	cur := psycopg.NewCursor(conn)
	st := newTestStorage(t)

	manifest, err := Run(context.Background(), cur, st, &Options{
		Query:    "SELECT * FROM film",
		ExportId: "plain",
	})
	require.NoError(t, err)

	require.Len(t, manifest.Parts, 1)
	assert.Equal(t, "0.dat", manifest.Parts[0].Name)
	assert.Equal(t, manifest.OriginalSize, manifest.CompressedSize)

	sub := st.SubStorage("plain", true)
	assert.Len(t, partLines(readPart(t, sub, "0.dat", false, false)), 3)
}

func TestRunUsePgzip(t *testing.T) {
	conn := testutils.NewConn()
	conn.QueuePortal(testutils.FilmColumns(), testutils.FilmRows(5), "SELECT 5")
	cur := psycopg.NewCursor(conn)
	st := newTestStorage(t)

	_, err := Run(context.Background(), cur, st, &Options{
		Query:       "SELECT * FROM film",
		ExportId:    "parallel",
		Compression: true,
		UsePgzip:    true,
	})
	require.NoError(t, err)

	sub := st.SubStorage("parallel", true)
	assert.Len(t, partLines(readPart(t, sub, "0.dat.gz", true, true)), 5)
}

func TestRunMasksColumns(t *testing.T) {
	cols := []testutils.Column{
		testutils.Col("id", pgtype.Int8OID),
		testutils.Col("title", pgtype.TextOID),
		testutils.Col("email", pgtype.TextOID),
	}
	rows := [][]any{
		{int64(1), "academy dinosaur", "box.office@example.com"},
		{int64(2), "ace goldfinger", nil},
	}

	conn := testutils.NewConn()
	conn.QueuePortal(cols, rows, "SELECT 2")
	cur := psycopg.NewCursor(conn)
	st := newTestStorage(t)

	manifest, err := Run(context.Background(), cur, st, &Options{
		Query:       "SELECT id, title, email FROM film",
		ExportId:    "masked",
		Compression: true,
		MaskColumns: []string{"title", "email:email"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), manifest.RowCount)

	sub := st.SubStorage("masked", true)
	lines := partLines(readPart(t, sub, "0.dat.gz", true, false))
	require.Len(t, lines, 2)

	first := strings.Split(lines[0], "\t")
	require.Len(t, first, 3)
	assert.Equal(t, "1", first[0])
	assert.Equal(t, strings.Repeat("*", len("academy dinosaur")), first[1])
	assert.NotEqual(t, "box.office@example.com", first[2])
	assert.Contains(t, first[2], "@example.com")

	// NULL values stay NULL even in masked columns
	second := strings.Split(lines[1], "\t")
	assert.Equal(t, `\N`, second[2])
}

func TestRunMaskValidation(t *testing.T) {
	conn := testutils.NewConn()
	conn.QueuePortal(testutils.FilmColumns(), testutils.FilmRows(1), "SELECT 1")
	cur := psycopg.NewCursor(conn)
	st := newTestStorage(t)

	_, err := Run(context.Background(), cur, st, &Options{
		Query:       "SELECT * FROM film",
		ExportId:    "bad",
		MaskColumns: []string{"no_such_column"},
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, `masked column "no_such_column" is not in the result set`)

	conn = testutils.NewConn()
	conn.QueuePortal(testutils.FilmColumns(), testutils.FilmRows(1), "SELECT 1")
	cur = psycopg.NewCursor(conn)

	_, err = Run(context.Background(), cur, st, &Options{
		Query:       "SELECT * FROM film",
		ExportId:    "bad",
		MaskColumns: []string{"title:rot13"},
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, `unknown masking rule "rot13"`)
}

func TestRunPropagatesQueryError(t *testing.T) {
	conn := testutils.NewConn()
	conn.QueuePortal(testutils.FilmColumns(), testutils.FilmRows(50), "SELECT 50").
		FailPull(2, &pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"})
	cur := psycopg.NewCursor(conn, psycopg.WithStreamSize(10))
	st := newTestStorage(t)

	_, err := Run(context.Background(), cur, st, &Options{
		Query:       "SELECT * FROM film",
		ExportId:    "broken",
		RowsPerPart: 10,
		Compression: true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, psycopg.ErrOperational)

	// a failed export must not leave a metadata object behind
	sub := st.SubStorage("broken", true)
	exists, err := sub.Exists(context.Background(), MetadataObjectName)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Equal(t, 0, conn.OpenPortalCount())
}

func TestRunStorageFailure(t *testing.T) {
	conn := testutils.NewConn()
	conn.QueuePortal(testutils.FilmColumns(), testutils.FilmRows(5), "SELECT 5")
	cur := psycopg.NewCursor(conn)

	sub := &mockUtils.StorageMock{}
	sub.On("PutObject", mock.Anything, "0.dat.gz", mock.Anything).
		Return(errors.New("no space left on device"))
	st := &mockUtils.StorageMock{}
	st.On("SubStorage", "fail", true).Return(sub)

	_, err := Run(context.Background(), cur, st, &Options{
		Query:       "SELECT * FROM film",
		ExportId:    "fail",
		Compression: true,
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "cannot write object")

	sub.AssertNotCalled(t, "PutObject", mock.Anything, MetadataObjectName, mock.Anything)
	st.AssertExpectations(t)
}

func TestRunGeneratesExportId(t *testing.T) {
	conn := testutils.NewConn()
	conn.QueuePortal(testutils.FilmColumns(), testutils.FilmRows(1), "SELECT 1")
	cur := psycopg.NewCursor(conn)
	st := newTestStorage(t)

	manifest, err := Run(context.Background(), cur, st, &Options{
		Query:       "SELECT * FROM film",
		Compression: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, manifest.ExportId)

	sub := st.SubStorage(manifest.ExportId, true)
	exists, err := sub.Exists(context.Background(), MetadataObjectName)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRunRequiresQuery(t *testing.T) {
	conn := testutils.NewConn()
	cur := psycopg.NewCursor(conn)
	st := newTestStorage(t)

	_, err := Run(context.Background(), cur, st, &Options{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "export query cannot be empty")
}

func TestRunDeterministicChecksum(t *testing.T) {
	rows := [][]any{
		{int64(1), "academy dinosaur", "alice", "a@example.com"},
		{int64(2), "ace goldfinger", "bob", "b@example.com"},
	}
	run := func(t *testing.T) *Manifest {
		conn := testutils.NewConn()
		conn.QueuePortal(testutils.FilmColumns(), rows, "SELECT 2")
		cur := psycopg.NewCursor(conn)
		manifest, err := Run(context.Background(), cur, newTestStorage(t), &Options{
			Query:       "SELECT * FROM film",
			ExportId:    "sum",
			Compression: true,
		})
		require.NoError(t, err)
		return manifest
	}

	first := run(t)
	second := run(t)
	assert.Equal(t, first.Checksum, second.Checksum)
	assert.Equal(t, first.OriginalSize, second.OriginalSize)
}

func TestEncodeRowEscaping(t *testing.T) {
	j := &job{
		columns: []string{"id", "payload"},
		masks:   map[int]string{},
		lineBuf: new(bytes.Buffer),
	}

	line, err := j.encodeRow([]any{int64(7), "tab\there\nnewline\\slash"})
	require.NoError(t, err)
	assert.Equal(t, "7\ttab\\there\\nnewline\\\\slash\n", string(line))

	line, err = j.encodeRow([]any{nil, "x"})
	require.NoError(t, err)
	assert.Equal(t, "\\N\tx\n", string(line))

	line, err = j.encodeRow([]any{time.Date(2006, 2, 15, 9, 3, 42, 0, time.UTC), true})
	require.NoError(t, err)
	assert.Equal(t, "2006-02-15 09:03:42Z\ttrue\n", string(line))
}
