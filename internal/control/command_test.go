package control

import (
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Command
		wantErr bool
	}{
		{name: "bare on", payload: "ON", want: Command{State: strPtr("ON")}},
		{name: "bare toggle with whitespace", payload: " toggle\n", want: Command{State: strPtr("toggle")}},
		{
			name:    "json full",
			payload: `{"state":"ON","oscillating":true,"speed":"low"}`,
			want:    Command{State: strPtr("ON"), Oscillating: boolPtr(true), Speed: strPtr("low")},
		},
		{name: "json speed only", payload: `{"speed":"medium"}`, want: Command{Speed: strPtr("medium")}},
		{name: "empty", payload: "  ", wantErr: true},
		{name: "broken json", payload: `{"state":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCommand) {
					t.Errorf("ParseCommand() error = %v, want ErrInvalidCommand", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCommand() error = %v", err)
			}
			if !equalPtr(got.State, tt.want.State) || !equalPtr(got.Speed, tt.want.Speed) || !equalPtr(got.Oscillating, tt.want.Oscillating) {
				t.Errorf("ParseCommand() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func equalPtr[V comparable](a, b *V) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func TestCommand_Compile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{"empty", Command{}},
		{"unknown state", Command{State: strPtr("MAYBE")}},
		{"unknown speed", Command{State: strPtr("ON"), Speed: strPtr("turbo")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cmd.compile(); !errors.Is(err, ErrInvalidCommand) {
				t.Errorf("compile() error = %v, want ErrInvalidCommand", err)
			}
		})
	}
}

func TestCommand_Chain(t *testing.T) {
	tests := []struct {
		name  string
		start fan.Snapshot
		cmd   Command
		want  fan.Snapshot
	}{
		{
			name:  "on with attributes",
			start: fan.Snapshot{Speed: fan.SpeedHigh},
			cmd:   Command{State: strPtr("on"), Oscillating: boolPtr(true), Speed: strPtr("low")},
			want:  fan.Snapshot{On: true, Oscillating: true, Speed: fan.SpeedLow},
		},
		{
			name:  "on keeps unset attributes",
			start: fan.Snapshot{Oscillating: true, Speed: fan.SpeedMedium},
			cmd:   Command{State: strPtr("ON")},
			want:  fan.Snapshot{On: true, Oscillating: true, Speed: fan.SpeedMedium},
		},
		{
			name:  "off with speed stays off",
			start: fan.Snapshot{On: true, Speed: fan.SpeedHigh},
			cmd:   Command{State: strPtr("OFF"), Speed: strPtr("low")},
			want:  fan.Snapshot{On: false, Speed: fan.SpeedLow},
		},
		{
			name:  "toggle",
			start: fan.Snapshot{On: true, Speed: fan.SpeedHigh},
			cmd:   Command{State: strPtr("TOGGLE")},
			want:  fan.Snapshot{On: false, Speed: fan.SpeedHigh},
		},
		{
			name:  "speed only does not power on",
			start: fan.Snapshot{Speed: fan.SpeedHigh},
			cmd:   Command{Speed: strPtr("medium")},
			want:  fan.Snapshot{Speed: fan.SpeedMedium},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := fan.NewState("fan")
			s.SetOn(tt.start.On)
			s.SetOscillating(tt.start.Oscillating)
			s.SetSpeed(tt.start.Speed)

			c, err := tt.cmd.compile()
			if err != nil {
				t.Fatalf("compile() error = %v", err)
			}
			if err := c.chain(s).Play(tt.cmd); err != nil {
				t.Fatalf("Play() error = %v", err)
			}
			if got := s.Snapshot(); got != tt.want {
				t.Errorf("Snapshot() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
