package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementFanState   = "fan_state"
	MeasurementAutomation = "automation_execution"
)

// FanStatePoint is one recorded fan state.
type FanStatePoint struct {
	FanID       string
	On          bool
	Oscillating bool
	Speed       string
	// SpeedLevel is the ordinal speed (0 off .. 3 high) for graphing.
	SpeedLevel int
	Time       time.Time
}

// WriteFanState records a fan state change. The write is non-blocking;
// points are batched and sent asynchronously.
//
// Example:
//
//	client.WriteFanState(influxdb.FanStatePoint{FanID: "living_room", On: true, Speed: "high", SpeedLevel: 3})
func (c *Client) WriteFanState(p FanStatePoint) {
	c.writePoint(fanStatePoint(p))
}

// WriteAutomationExecution records one automation firing.
func (c *Client) WriteAutomationExecution(automationID, fanID, status string, duration time.Duration, at time.Time) {
	c.writePoint(write.NewPoint(
		MeasurementAutomation,
		map[string]string{
			"automation_id": automationID,
			"fan_id":        fanID,
			"status":        status,
		},
		map[string]interface{}{
			"duration_ms": duration.Milliseconds(),
		},
		timestampOrNow(at),
	))
}

// WritePoint writes a custom point stamped with the current time.
//
// Example:
//
//	client.WritePoint("controller_stats",
//	    map[string]string{"host": "fan-01"},
//	    map[string]interface{}{"fans": 3})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.writePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func (c *Client) writePoint(point *write.Point) {
	if !c.IsConnected() || c.writer == nil {
		return
	}
	c.writer.WritePoint(point)
}

// fanStatePoint builds the fan_state point. Tags carry only the fan ID to
// keep series cardinality at one per fan.
func fanStatePoint(p FanStatePoint) *write.Point {
	return write.NewPoint(
		MeasurementFanState,
		map[string]string{
			"fan_id": p.FanID,
		},
		map[string]interface{}{
			"on":          p.On,
			"oscillating": p.Oscillating,
			"speed":       p.Speed,
			"speed_level": p.SpeedLevel,
		},
		timestampOrNow(p.Time),
	)
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
