package exporter

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"keyserve/internal/license"
)

func testRecords() []license.Record {
	activatedAt := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	return []license.Record{
		{
			Key:             "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE",
			Type:            license.TypeStandard,
			DurationDays:    "90",
			HardwareID:      "a1b2c3d4e5f60718a1b2c3d4e5f60718",
			ActivatedAt:     &activatedAt,
			ExpiresAt:       activatedAt.AddDate(0, 0, 90),
			CreatedAt:       activatedAt.AddDate(0, -1, 0),
			ActivationCount: 1,
			CheckCount:      42,
		},
		{
			Key:       "11111111-2222-3333-4444-555555555555",
			Type:      license.TypeLifetime,
			ExpiresAt: license.LifetimeSentinel,
			CreatedAt: activatedAt,
		},
	}
}

func newTestWriter() *RegisterWriter {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegisterWriter(time.UTC, logger)
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "licenses.xlsx")
	require.NoError(t, newTestWriter().WriteXLSX(path, testRecords()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(registerSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per record")

	assert.Equal(t, registerHeaders, rows[0][:len(registerHeaders)])

	activated := rows[1]
	assert.Equal(t, "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE", activated[0])
	assert.Equal(t, "standard", activated[1])
	assert.Equal(t, "90", activated[2])
	assert.Equal(t, "yes", activated[3])
	assert.Equal(t, "a1b2c3d4", activated[4])
	assert.Equal(t, "15/03/2024 12:00:00", activated[5])

	lifetime := rows[2]
	assert.Equal(t, "lifetime", lifetime[1])
	assert.Equal(t, "no", lifetime[3])
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "licenses.csv")
	require.NoError(t, newTestWriter().WriteCSV(path, testRecords()))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, registerHeaders, rows[0])
	assert.Equal(t, "42", rows[1][9])
	assert.Equal(t, "", rows[2][4], "unactivated rows carry no prefix")
}

func TestWriteXLSXEmptyRegister(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, newTestWriter().WriteXLSX(path, nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(registerSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}
