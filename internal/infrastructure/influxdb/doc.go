// Package influxdb provides InfluxDB connectivity for Gray Logic Fan.
//
// It wraps the official influxdb-client-go v2 library to record fan state
// history and automation executions as time-series points.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // history disabled
//	}
//	defer client.Close()
//
//	client.WriteFanState(influxdb.FanStatePoint{FanID: "living_room", On: true, Speed: "high", SpeedLevel: 3})
//
// Writes never block the caller; failures are reported through SetOnError.
package influxdb
