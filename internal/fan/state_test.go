package fan

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// memoryPreferences is an in-memory Preferences implementation for testing.
type memoryPreferences struct {
	data    map[string][]byte
	loadErr error
	saveErr error
	mu      sync.Mutex
}

func newMemoryPreferences() *memoryPreferences {
	return &memoryPreferences{data: make(map[string][]byte)}
}

func (m *memoryPreferences) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	blob, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	cpy := make([]byte, len(blob))
	copy(cpy, blob)
	return cpy, true, nil
}

func (m *memoryPreferences) Save(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	cpy := make([]byte, len(blob))
	copy(cpy, blob)
	m.data[key] = cpy
	return nil
}

// recordObservers registers n observers that append their index to the
// returned slice when called.
func recordObservers(s *State, n int) *[]int {
	calls := &[]int{}
	for i := 0; i < n; i++ {
		idx := i
		s.AddOnStateChangeCallback(func() {
			*calls = append(*calls, idx)
		})
	}
	return calls
}

func assertCalls(t *testing.T, got []int, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("observer calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("observer calls = %v, want %v", got, want)
		}
	}
}

func TestNewState_Defaults(t *testing.T) {
	s := NewState("living_room_fan")

	if s.Name() != "living_room_fan" {
		t.Errorf("Name() = %q, want %q", s.Name(), "living_room_fan")
	}
	if s.On() {
		t.Error("On() = true, want false")
	}
	if s.Oscillating() {
		t.Error("Oscillating() = true, want false")
	}
	// A new fan defaults to HIGH even though it is powered off.
	if s.Speed() != SpeedHigh {
		t.Errorf("Speed() = %v, want %v", s.Speed(), SpeedHigh)
	}
	if s.Traits() != (Traits{}) {
		t.Errorf("Traits() = %+v, want zero", s.Traits())
	}
}

func TestState_SetOn(t *testing.T) {
	for _, b := range []bool{true, false} {
		s := NewState("fan")
		calls := recordObservers(s, 3)

		s.SetOn(b)

		if s.On() != b {
			t.Errorf("SetOn(%v): On() = %v", b, s.On())
		}
		assertCalls(t, *calls, []int{0, 1, 2})
	}
}

func TestState_SetOn_RedundantWriteStillNotifies(t *testing.T) {
	s := NewState("fan")
	calls := recordObservers(s, 1)

	s.SetOn(false)
	s.SetOn(false)

	assertCalls(t, *calls, []int{0, 0})
}

func TestState_SetOscillating(t *testing.T) {
	s := NewState("fan")
	calls := recordObservers(s, 2)

	// Oscillation is independent of power.
	s.SetOscillating(true)

	if !s.Oscillating() {
		t.Error("Oscillating() = false, want true")
	}
	if s.On() {
		t.Error("SetOscillating changed power")
	}
	assertCalls(t, *calls, []int{0, 1})
}

func TestState_SetSpeed(t *testing.T) {
	for _, speed := range AllSpeeds() {
		s := NewState("fan")
		calls := recordObservers(s, 1)

		s.SetSpeed(speed)

		if s.Speed() != speed {
			t.Errorf("SetSpeed(%v): Speed() = %v", speed, s.Speed())
		}
		assertCalls(t, *calls, []int{0})
	}
}

// warnCounter is a Logger that counts Warn calls.
type warnCounter struct {
	noopLogger
	warns int
}

func (w *warnCounter) Warn(string, ...any) { w.warns++ }

func TestState_SetSpeed_OutOfRange(t *testing.T) {
	for _, speed := range []Speed{Speed(-1), Speed(4), Speed(-3), Speed(7)} {
		s := NewState("fan")
		s.SetSpeed(SpeedLow)
		logger := &warnCounter{}
		s.SetLogger(logger)
		calls := recordObservers(s, 1)

		s.SetSpeed(speed)

		if s.Speed() != SpeedLow {
			t.Errorf("SetSpeed(%d): Speed() = %v, want unchanged %v", int(speed), s.Speed(), SpeedLow)
		}
		if len(*calls) != 0 {
			t.Errorf("SetSpeed(%d): observers called %d times, want 0", int(speed), len(*calls))
		}
		if logger.warns != 1 {
			t.Errorf("SetSpeed(%d): warnings = %d, want 1", int(speed), logger.warns)
		}
	}
}

func TestState_SetSpeed_OutOfRangeKeepsStateSavable(t *testing.T) {
	s := NewState("fan")
	s.SetPreferences(newMemoryPreferences())

	s.SetSpeed(Speed(-3))

	if err := s.SaveToPreferences(context.Background()); err != nil {
		t.Errorf("SaveToPreferences() error = %v after rejected speed", err)
	}
}

func TestState_SetSpeedString(t *testing.T) {
	byName := NewState("a")
	byEnum := NewState("b")

	if err := byName.SetSpeedString("medium"); err != nil {
		t.Fatalf("SetSpeedString(medium) error = %v", err)
	}
	byEnum.SetSpeed(SpeedMedium)

	if byName.Speed() != byEnum.Speed() {
		t.Errorf("SetSpeedString(medium) = %v, SetSpeed(SpeedMedium) = %v", byName.Speed(), byEnum.Speed())
	}
}

func TestState_SetSpeedString_Unknown(t *testing.T) {
	s := NewState("fan")
	s.SetSpeed(SpeedLow)
	calls := recordObservers(s, 1)

	err := s.SetSpeedString("bogus")

	if !errors.Is(err, ErrUnknownSpeed) {
		t.Fatalf("SetSpeedString(bogus) error = %v, want ErrUnknownSpeed", err)
	}
	if s.Speed() != SpeedLow {
		t.Errorf("Speed() = %v, want unchanged %v", s.Speed(), SpeedLow)
	}
	if len(*calls) != 0 {
		t.Errorf("observers called %d times on failed set, want 0", len(*calls))
	}
}

func TestState_SetTraits_DoesNotNotify(t *testing.T) {
	s := NewState("fan")
	calls := recordObservers(s, 1)

	s.SetTraits(NewTraits(true, false))

	if !s.Traits().Oscillation || s.Traits().Speed {
		t.Errorf("Traits() = %+v, want oscillation only", s.Traits())
	}
	if len(*calls) != 0 {
		t.Errorf("observers called %d times for traits, want 0", len(*calls))
	}
}

func TestState_AcceptsUnadvertisedAttributes(t *testing.T) {
	s := NewState("fan")
	s.SetTraits(Traits{})

	s.SetOscillating(true)
	s.SetSpeed(SpeedLow)

	if !s.Oscillating() || s.Speed() != SpeedLow {
		t.Errorf("state = %+v, want oscillating at low", s.Snapshot())
	}
}

func TestState_ObserverReadsNewValue(t *testing.T) {
	s := NewState("fan")
	var seen []bool
	s.AddOnStateChangeCallback(func() {
		seen = append(seen, s.On())
	})

	s.SetOn(true)
	s.SetOn(false)

	if len(seen) != 2 || !seen[0] || seen[1] {
		t.Errorf("observer saw %v, want [true false]", seen)
	}
}

func TestState_PreferencesRoundTrip(t *testing.T) {
	ctx := context.Background()
	prefs := newMemoryPreferences()

	tests := []Snapshot{
		{On: true, Oscillating: true, Speed: SpeedLow},
		{On: false, Oscillating: true, Speed: SpeedOff},
		{On: true, Oscillating: false, Speed: SpeedMedium},
		{On: false, Oscillating: false, Speed: SpeedHigh},
	}

	for _, want := range tests {
		original := NewState("bedroom_fan")
		original.SetPreferences(prefs)
		original.SetOn(want.On)
		original.SetOscillating(want.Oscillating)
		original.SetSpeed(want.Speed)

		if err := original.SaveToPreferences(ctx); err != nil {
			t.Fatalf("SaveToPreferences() error = %v", err)
		}

		restored := NewState("bedroom_fan")
		restored.SetPreferences(prefs)
		if err := restored.LoadFromPreferences(ctx); err != nil {
			t.Fatalf("LoadFromPreferences() error = %v", err)
		}

		if got := restored.Snapshot(); got != want {
			t.Errorf("restored = %+v, want %+v", got, want)
		}
	}
}

func TestState_LoadFromPreferences_Missing(t *testing.T) {
	s := NewState("never_saved")
	s.SetPreferences(newMemoryPreferences())

	if err := s.LoadFromPreferences(context.Background()); err != nil {
		t.Fatalf("LoadFromPreferences() error = %v, want nil", err)
	}

	want := Snapshot{On: false, Oscillating: false, Speed: SpeedHigh}
	if got := s.Snapshot(); got != want {
		t.Errorf("Snapshot() = %+v, want defaults %+v", got, want)
	}
}

func TestState_LoadFromPreferences_DoesNotNotify(t *testing.T) {
	ctx := context.Background()
	prefs := newMemoryPreferences()
	prefs.data["fan"] = []byte(`{"state":true,"oscillating":true,"speed":"low"}`)

	s := NewState("fan")
	s.SetPreferences(prefs)
	calls := recordObservers(s, 1)

	if err := s.LoadFromPreferences(ctx); err != nil {
		t.Fatalf("LoadFromPreferences() error = %v", err)
	}
	if len(*calls) != 0 {
		t.Errorf("observers called %d times on restore, want 0", len(*calls))
	}
	if !s.On() || !s.Oscillating() || s.Speed() != SpeedLow {
		t.Errorf("Snapshot() = %+v", s.Snapshot())
	}
}

func TestState_LoadFromPreferences_Corrupt(t *testing.T) {
	prefs := newMemoryPreferences()
	prefs.data["fan"] = []byte(`{"state":true,"speed":"turbo"}`)

	s := NewState("fan")
	s.SetPreferences(prefs)

	err := s.LoadFromPreferences(context.Background())
	if !errors.Is(err, ErrCorruptPreferences) {
		t.Fatalf("LoadFromPreferences() error = %v, want ErrCorruptPreferences", err)
	}
	if s.On() || s.Speed() != SpeedHigh {
		t.Errorf("corrupt load mutated state: %+v", s.Snapshot())
	}
}

func TestState_Preferences_NoStore(t *testing.T) {
	s := NewState("fan")
	ctx := context.Background()

	if err := s.LoadFromPreferences(ctx); !errors.Is(err, ErrNoPreferences) {
		t.Errorf("LoadFromPreferences() error = %v, want ErrNoPreferences", err)
	}
	if err := s.SaveToPreferences(ctx); !errors.Is(err, ErrNoPreferences) {
		t.Errorf("SaveToPreferences() error = %v, want ErrNoPreferences", err)
	}
}

func TestState_Preferences_StoreErrors(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("disk full")
	prefs := newMemoryPreferences()
	prefs.loadErr = storeErr
	prefs.saveErr = storeErr

	s := NewState("fan")
	s.SetPreferences(prefs)

	if err := s.LoadFromPreferences(ctx); !errors.Is(err, storeErr) {
		t.Errorf("LoadFromPreferences() error = %v, want wrapped store error", err)
	}
	if err := s.SaveToPreferences(ctx); !errors.Is(err, storeErr) {
		t.Errorf("SaveToPreferences() error = %v, want wrapped store error", err)
	}
}
