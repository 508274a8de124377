// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	ExecutionsCreated   = expvar.NewInt("executions_created")
	GranulesUpserted    = expvar.NewInt("granules_upserted")
	RelocationsTotal    = expvar.NewInt("relocations_total")
	RelocationsPartial  = expvar.NewInt("relocations_partial")
	RelocationConflicts = expvar.NewInt("relocation_conflicts")
	FilesMoved          = expvar.NewInt("files_moved")
	FileMovesFailed     = expvar.NewInt("file_moves_failed")
	LegacyWriteFailures = expvar.NewInt("legacy_write_failures")
	NotificationsSent   = expvar.NewInt("notifications_sent")
)
