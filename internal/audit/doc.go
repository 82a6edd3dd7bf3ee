// Package audit keeps the lifecycle history of the telemetry core in the
// audit_logs table: which groups and devices were started or stopped, and
// which aggregate queries completed.
//
// Recorder plugs into the core as an iot.EventSink and writes in the
// background; SQLiteRepository serves the paginated listing behind
// GET /api/v1/audit.
//
//	repo := audit.NewSQLiteRepository(db.DB)
//	rec := audit.NewRecorder(repo, cfg.Audit.BufferSize, log)
//	rec.Start()
//	defer rec.Close(ctx)
//
//	manager := iot.SpawnManager(sys, iot.ManagerConfig{Events: rec})
package audit
