// Package control owns the fan states and serialises every access to them.
//
// fan.State is not safe for concurrent use. The Manager keeps one State per
// configured fan and funnels every read and write through a single Loop
// goroutine, so MQTT commands, API requests and automation chains never
// interleave.
//
// # Change fan-out
//
// Each State notifies its observers synchronously on every setter call, so
// one command can raise several notifications. The Manager's observer only
// marks the fan dirty. After the job finishes, every dirty fan is persisted
// (when configured to restore state) and each Listener is told once.
//
//	MQTT / API / automation
//	        │  Apply / Do
//	        ▼
//	      Loop ──► fan.State ──observer──► dirty
//	        │
//	        └─ after job: persist + Listener.FanStateChanged
//
// Listeners run on the loop goroutine and must return quickly.
package control
