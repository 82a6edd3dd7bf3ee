// Package influxdb keeps the temperature history in InfluxDB.
//
// History wraps the influxdb-client-go v2 batched write API. It writes two
// measurements:
//
//	temperature        tags: group_id, device_id   fields: celsius
//	temperature_query  tags: group_id              fields: devices, duration_ms,
//	                                                       request_id, value,
//	                                                       not_available,
//	                                                       device_terminated,
//	                                                       timed_out
//
// The history is write-only. Devices never restore their last reading from
// it after a restart.
//
// # Usage
//
//	history, err := influxdb.Open(cfg.InfluxDB, func(err error) {
//	    log.Error("InfluxDB write error", "error", err)
//	})
//	if err != nil {
//	    return err
//	}
//	defer history.Close()
//
//	history.WriteTemperature("kitchen", "t1", 21.5, time.Now())
//
// Writes never block on the network. Batch failures go to the callback
// given to Open. Close sends whatever is still queued.
package influxdb
