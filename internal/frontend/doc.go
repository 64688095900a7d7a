// Package frontend binds fans to MQTT.
//
// For every configured fan the binding:
//
//   - publishes the retained state {"state":"ON","oscillating":true,"speed":"high"}
//     to graylogic/fan/{id}/state at start and after every change
//   - applies commands received on graylogic/fan/{id}/command, either a JSON
//     control.Command or a bare ON, OFF or TOGGLE
//   - publishes Home Assistant discovery to {prefix}/fan/{id}/config,
//     exposing oscillation and speed controls only when the fan's traits
//     advertise them
//
// MQTT is registered as a control.Listener. Listeners run on the control
// loop, so state messages are handed to a publisher goroutine and the loop
// never waits on the broker. Only the latest state per fan is kept while a
// publish is in flight.
package frontend
