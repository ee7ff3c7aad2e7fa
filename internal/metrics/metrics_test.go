package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lynkia/deployer/internal/artifact"
	"github.com/lynkia/deployer/internal/pipeline"
)

func TestRecorder_Stages(t *testing.T) {
	r := NewRecorder("deploy")

	r.StageStarted(pipeline.Stage{Name: "install"})
	r.StageSucceeded(pipeline.Stage{Name: "install"}, 1500*time.Millisecond)
	r.StageFailed(pipeline.Stage{Name: "gate"}, 10*time.Millisecond, errors.New("missing"))

	assert.Equal(t, 1.5, testutil.ToFloat64(r.stageDuration.WithLabelValues("install")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.stageSuccess.WithLabelValues("install")))
	assert.Equal(t, float64(0), testutil.ToFloat64(r.stageSuccess.WithLabelValues("gate")))
}

func TestRecorder_Strategies(t *testing.T) {
	r := NewRecorder("build")

	r.StrategyStarted("cross-platform", 1)
	r.StrategyFailed("cross-platform", errors.New("no wheel"))
	r.StrategySucceeded("host-native", true)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.installAttempts.WithLabelValues("cross-platform", "failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.installAttempts.WithLabelValues("host-native", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.installDegraded))
}

func TestRecorder_ArchiveAndFinish(t *testing.T) {
	r := NewRecorder("deploy")
	r.now = func() time.Time { return time.Unix(1700000000, 0) }

	r.Archive(&artifact.Manifest{Size: 4096, Entries: make([]artifact.Entry, 12)})
	r.Finish(nil, 42*time.Second)

	assert.Equal(t, float64(4096), testutil.ToFloat64(r.archiveBytes))
	assert.Equal(t, float64(12), testutil.ToFloat64(r.archiveEntries))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.runSuccess))
	assert.Equal(t, float64(42), testutil.ToFloat64(r.runDuration))
	assert.Equal(t, float64(1700000000), testutil.ToFloat64(r.lastRun))

	r.Finish(errors.New("boom"), time.Second)
	assert.Equal(t, float64(0), testutil.ToFloat64(r.runSuccess))
}

func TestRecorder_WriteFile(t *testing.T) {
	r := NewRecorder("deploy")
	r.StageSucceeded(pipeline.Stage{Name: "clean"}, time.Second)
	r.Finish(nil, time.Second)

	path := filepath.Join(t.TempDir(), "deployer.prom")
	require.NoError(t, r.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `deployer_stage_duration_seconds{command="deploy",stage="clean"} 1`)
	assert.Contains(t, string(data), `deployer_run_success{command="deploy"} 1`)
}

func TestRecorder_WriteFileBadPath(t *testing.T) {
	r := NewRecorder("deploy")
	err := r.WriteFile(filepath.Join(t.TempDir(), "missing", "deployer.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write metrics")
}
