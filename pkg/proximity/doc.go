// Package proximity turns per-frame object detections into distance
// estimates, directional zones and debounced spoken alerts.
//
// The engine is pure decision logic over in-memory state. It performs no I/O,
// never blocks, and is driven frame-synchronously by its caller:
//
//	store := proximity.NewAlertStore()
//	engine, _ := proximity.NewEngine(proximity.DefaultConfig(), store)
//	result := engine.ProcessFrame(frame)
//	for _, alert := range result.Alerts {
//	    announcer.Announce(alert)
//	}
//	if result.Danger {
//	    // draw the imminent-danger banner
//	}
//
// Debouncing is keyed by Detection.ID. The caller must supply identities that
// stay stable for the same physical object across consecutive frames; when the
// upstream tracker can only number detections by slot, debouncing applies per
// slot instead of per object.
package proximity
