package telemetry_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/monitorctl/internal/telemetry"
)

func testConfig(t *testing.T) telemetry.Config {
	t.Helper()

	return telemetry.Config{
		DBPath:       filepath.Join(t.TempDir(), "telemetry.db"),
		Enabled:      true,
		BatchSize:    2,
		BatchTimeout: time.Minute,
	}
}

func countRows(t *testing.T, dbPath, table string) int {
	t.Helper()

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&count))

	return count
}

func TestServiceRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	svc, err := telemetry.NewService(cfg)
	require.NoError(t, err)
	require.NotEmpty(t, svc.RunID())

	ctx := context.Background()
	now := time.Now()

	require.NoError(t, svc.RecordSettingChange(ctx, &telemetry.SettingChange{
		Timestamp: now,
		Monitor:   "u2720q_h7mw013",
		Feature:   "Brightness (0x10)",
		Previous:  50,
		Value:     35,
		Origin:    telemetry.OriginProfile,
	}))
	require.NoError(t, svc.RecordProfileTransition(ctx, &telemetry.ProfileTransition{
		Timestamp: now,
		Monitor:   "u2720q_h7mw013",
		From:      "default",
		To:        "coding",
		Cause:     "class=code-oss",
	}))
	require.NoError(t, svc.RecordAdaptiveSample(ctx, &telemetry.AdaptiveSample{
		Timestamp:   now,
		Monitor:     "u2720q_h7mw013",
		Mean:        96.5,
		DarkRatio:   0.4,
		BrightRatio: 0.1,
		Brightness:  62,
		Contrast:    55,
	}))
	require.NoError(t, svc.Close())

	assert.Equal(t, 1, countRows(t, cfg.DBPath, "setting_changes"))
	assert.Equal(t, 1, countRows(t, cfg.DBPath, "profile_transitions"))
	assert.Equal(t, 1, countRows(t, cfg.DBPath, "adaptive_samples"))

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()

	var runID, origin string
	var value int
	require.NoError(t, db.QueryRow(
		"SELECT run_id, origin, value FROM setting_changes",
	).Scan(&runID, &origin, &value))
	assert.Equal(t, svc.RunID(), runID)
	assert.Equal(t, telemetry.OriginProfile, origin)
	assert.Equal(t, 35, value)
}

func TestBatchFlushesAtBatchSize(t *testing.T) {
	cfg := testConfig(t)
	svc, err := telemetry.NewService(cfg)
	require.NoError(t, err)
	defer svc.Close()

	ctx := context.Background()
	change := &telemetry.SettingChange{
		Timestamp: time.Now(),
		Monitor:   "m",
		Feature:   "Contrast (0x12)",
		Previous:  50,
		Value:     60,
		Origin:    telemetry.OriginAdaptive,
	}

	require.NoError(t, svc.RecordSettingChange(ctx, change))
	assert.Equal(t, 0, countRows(t, cfg.DBPath, "setting_changes"), "single record stays buffered")

	require.NoError(t, svc.RecordSettingChange(ctx, change))
	assert.Equal(t, 2, countRows(t, cfg.DBPath, "setting_changes"), "hitting the batch size flushes")
}

func TestDisabledServiceIsNoop(t *testing.T) {
	cfg := telemetry.Config{Enabled: false}
	svc, err := telemetry.NewService(cfg)
	require.NoError(t, err)

	require.NoError(t, svc.RecordSettingChange(context.Background(), &telemetry.SettingChange{}))
	assert.Empty(t, svc.RunID())
	require.NoError(t, svc.Close())
}

func TestEnabledWithoutPathFailsValidation(t *testing.T) {
	_, err := telemetry.NewService(telemetry.Config{Enabled: true})
	require.Error(t, err)
}

func TestNilRecordRejected(t *testing.T) {
	cfg := testConfig(t)
	svc, err := telemetry.NewService(cfg)
	require.NoError(t, err)
	defer svc.Close()

	require.Error(t, svc.RecordSettingChange(context.Background(), nil))
	require.Error(t, svc.RecordProfileTransition(context.Background(), nil))
	require.Error(t, svc.RecordAdaptiveSample(context.Background(), nil))
}

func TestStaleSchemaIsBackedUpAndRecreated(t *testing.T) {
	cfg := testConfig(t)

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	_, err = db.Exec(`
        CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
        INSERT INTO schema_versions (version, applied_at) VALUES (99, datetime('now'));
    `)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	svc, err := telemetry.NewService(cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	db, err = sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()

	version, err := telemetry.GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, telemetry.SchemaVersion, version)

	backups, err := os.ReadDir(filepath.Join(filepath.Dir(cfg.DBPath), "backups"))
	require.NoError(t, err)
	assert.NotEmpty(t, backups, "stale database should be backed up before recreation")
}
