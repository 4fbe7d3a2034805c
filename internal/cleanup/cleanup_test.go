package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"car-market-tracker/internal/dataset"
	"car-market-tracker/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func exportDays(t *testing.T, offsets ...int) *snapshot.Service {
	t.Helper()
	svc := snapshot.NewService(t.TempDir())
	for _, off := range offsets {
		_, err := svc.Export(today.AddDate(0, 0, -off), dataset.Tables{})
		require.NoError(t, err)
	}
	return svc
}

func newService(svc *snapshot.Service) *Service {
	s := NewService(svc)
	s.now = func() time.Time { return today }
	return s
}

func TestPruneSnapshots_DisabledByDefault(t *testing.T) {
	svc := exportDays(t, 0, 30)
	result, err := newService(svc).PruneSnapshots(DefaultCleanupConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, result.TargetCount)

	infos, err := svc.List()
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestPruneSnapshots_DeletesOlderThanRetention(t *testing.T) {
	svc := exportDays(t, 0, 6, 7, 20)
	result, err := newService(svc).PruneSnapshots(CleanupConfig{RetentionDays: 7, MaxDeletionCount: 10})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TargetCount)
	assert.Equal(t, 2, result.DeletedCount)
	assert.ElementsMatch(t, []string{"2024-03-03", "2024-02-19"}, result.DeletedSnapshots)

	infos, err := svc.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "2024-03-04", infos[1].DateKey())

	_, err = os.Stat(filepath.Join(svc.Dir(), "sold_2024-03-03.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestPruneSnapshots_DryRunKeepsFiles(t *testing.T) {
	svc := exportDays(t, 0, 10)
	result, err := newService(svc).PruneSnapshots(CleanupConfig{RetentionDays: 7, MaxDeletionCount: 10, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-29"}, result.DeletedSnapshots)

	infos, err := svc.List()
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestPruneSnapshots_SafetyLimit(t *testing.T) {
	svc := exportDays(t, 10, 11, 12)
	_, err := newService(svc).PruneSnapshots(CleanupConfig{RetentionDays: 7, MaxDeletionCount: 2})
	assert.ErrorContains(t, err, "safety check failed")

	infos, err := svc.List()
	require.NoError(t, err)
	assert.Len(t, infos, 3)
}
