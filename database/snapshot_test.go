package database

import (
	"path/filepath"
	"testing"

	"jichitai/model"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSnapshot(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "snapshot.db"))
	require.NoError(t, err)
	defer db.Close()

	name, pref := "紫波郡矢巾町", "岩手県"
	town := model.TypeTown
	total, idx, ratio := int64(27100), 0.53, 78.23
	rows := []model.ExportRow{
		{
			JichitaiCode:             "033227",
			JichitaiName:             &name,
			Prefecture:               &pref,
			JichitaiType:             &town,
			PopulationTotal:          &total,
			FinancialCapabilityIndex: &idx,
			MyNumberIssuanceRate:     &ratio,
		},
		{JichitaiCode: "032018"},
	}

	runID, err := WriteSnapshot(db, rows, nil)
	require.NoError(t, err)
	_, err = uuid.Parse(runID)
	assert.NoError(t, err)

	got, err := GetSnapshotRows(db, runID)
	require.NoError(t, err)
	want := []model.ExportRow{rows[1], rows[0]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot rows mismatch (-want +got):\n%s", diff)
	}

	second, err := WriteSnapshot(db, rows[:1], nil)
	require.NoError(t, err)
	assert.NotEqual(t, runID, second)

	runs, err := GetExportRuns(db)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	counts := map[string]int{}
	for _, r := range runs {
		counts[r.RunID] = r.RowCount
	}
	assert.Equal(t, map[string]int{runID: 2, second: 1}, counts)
}

func TestWriteSnapshotRollsBackOnError(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "snapshot.db"))
	require.NoError(t, err)
	defer db.Close()

	dup := []model.ExportRow{{JichitaiCode: "033227"}, {JichitaiCode: "033227"}}
	_, err = WriteSnapshot(db, dup, nil)
	require.Error(t, err)

	runs, err := GetExportRuns(db)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
