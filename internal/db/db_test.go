package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-auto/drive.assist/internal/adas"
	"github.com/kestrel-auto/drive.assist/internal/adas/pipeline"
)

func newTestDB(t *testing.T) *DriveDB {
	t.Helper()
	db, err := NewDriveDB(filepath.Join(t.TempDir(), "drive_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrations(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(3), version)

	// Down one, back up.
	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	require.NoError(t, db.MigrateUp())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)

	// Re-running up on a current schema is a no-op.
	require.NoError(t, db.MigrateUp())
}

func TestRunLifecycle(t *testing.T) {
	db := newTestDB(t)

	runID, err := db.StartRun("1.2.3", "abc123", `{"fcws_warning_distance":30}`)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	runs, err := db.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, "1.2.3", runs[0].Version)
	assert.Nil(t, runs[0].EndedAt)

	require.NoError(t, db.EndRun(runID))
	runs, err = db.Runs(10)
	require.NoError(t, err)
	require.NotNil(t, runs[0].EndedAt)

	assert.Error(t, db.EndRun("no-such-run"))
}

func TestOperatorEvents(t *testing.T) {
	db := newTestDB(t)
	runID, err := db.StartRun("dev", "", "")
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	for i, typ := range []string{"fcws_state", "arbiter_mode", "fcws_state"} {
		require.NoError(t, db.RecordOperatorEvent(OperatorEvent{
			RunID:     runID,
			Frame:     uint64(i),
			Type:      typ,
			Detail:    "detail",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	events, err := db.RecentEvents(10, "")
	require.NoError(t, err)
	require.Len(t, events, 3)
	// Newest first.
	assert.Equal(t, uint64(2), events[0].Frame)

	fcws, err := db.RecentEvents(10, "fcws_state")
	require.NoError(t, err)
	assert.Len(t, fcws, 2)

	limited, err := db.RecentEvents(1, "")
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFrameDecisionsAndRollup(t *testing.T) {
	db := newTestDB(t)
	runID, err := db.StartRun("dev", "", "")
	require.NoError(t, err)

	center := 320.0
	offset := 42.0
	nearest := 12.5
	records := []FrameDecisionRecord{
		{RunID: runID, Frame: 1, FrameTime: time.Now().UTC(), FCWSState: "SAFE", LDWSState: "SAFE", LKASState: "STANDBY", ArbiterMode: "DL_ACTIVE", LatencyMS: 12},
		{RunID: runID, Frame: 2, FrameTime: time.Now().UTC(), FCWSState: "WARNING", LDWSState: "LEFT_WARNING", LKASState: "ACTIVE",
			SteeringAngle: 3.75, NearestDistance: &nearest, RiskyCount: 2, LaneCenterX: &center, VehicleOffset: &offset,
			ArbiterMode: "DL_DEGRADED", LatencyMS: 18},
		{RunID: runID, Frame: 3, FrameTime: time.Now().UTC(), FCWSState: "CRITICAL", LDWSState: "SAFE", LKASState: "STANDBY",
			ArbiterMode: "DL_DISABLED", LatencyMS: 22, SafeMode: true},
	}
	for _, rec := range records {
		require.NoError(t, db.RecordFrameDecision(rec))
	}

	series, err := db.DecisionSeries(runID, 0)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, uint64(1), series[0].Frame)
	require.NotNil(t, series[1].NearestDistance)
	assert.InDelta(t, 12.5, *series[1].NearestDistance, 1e-9)
	require.NotNil(t, series[1].VehicleOffset)
	assert.InDelta(t, 42.0, *series[1].VehicleOffset, 1e-9)
	assert.True(t, series[2].SafeMode)

	// Empty runID resolves to the most recent run.
	series, err = db.DecisionSeries("", 0)
	require.NoError(t, err)
	assert.Len(t, series, 3)

	counts, err := db.WarningRollup(runID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Frames)
	assert.Equal(t, int64(1), counts.FCWSWarning)
	assert.Equal(t, int64(1), counts.FCWSCritical)
	assert.Equal(t, int64(1), counts.LDWSWarning)
	assert.Equal(t, int64(1), counts.LKASActive)
}

func TestDecisionSeries_EmptyDatabase(t *testing.T) {
	db := newTestDB(t)
	series, err := db.DecisionSeries("", 0)
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestRecorderPersistsAsync(t *testing.T) {
	db := newTestDB(t)
	runID, err := db.StartRun("dev", "", "")
	require.NoError(t, err)

	rec := NewRecorder(db, runID)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	rec.RecordEvent(pipeline.Event{
		ID: "ev-1", Time: time.Now().UTC(), Frame: 7,
		Type: pipeline.EventFCWSState, Detail: "SAFE -> WARNING",
	})
	offset := -10.0
	centerX := 300.0
	rec.RecordDecision(&pipeline.FrameDecision{
		Frame: 7, Timestamp: time.Now().UTC(),
		FCWS: adas.FCWSWarning, LDWS: adas.LDWSSafe, LKAS: adas.LKASStandby,
		Lanes:       adas.LaneGeometry{CenterX: &centerX, Offset: &offset},
		ArbiterMode: "DL_ACTIVE", LatencyMS: 9,
	})

	// Let the drain loop pick both up, then stop it.
	require.Eventually(t, func() bool {
		events, err := db.RecentEvents(10, "")
		if err != nil || len(events) != 1 {
			return false
		}
		series, err := db.DecisionSeries(runID, 0)
		return err == nil && len(series) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	events, err := db.RecentEvents(10, "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev-1", events[0].ID)
	assert.Equal(t, runID, events[0].RunID)

	series, err := db.DecisionSeries(runID, 0)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "WARNING", series[0].FCWSState)
	require.NotNil(t, series[0].VehicleOffset)
	assert.InDelta(t, -10.0, *series[0].VehicleOffset, 1e-9)

	droppedEv, droppedDec := rec.Dropped()
	assert.Zero(t, droppedEv)
	assert.Zero(t, droppedDec)
}
