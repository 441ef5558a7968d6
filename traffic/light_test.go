package traffic

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestParseLightID(t *testing.T) {
	tests := []struct {
		in        string
		wantID    string
		wantDir   Direction
		expectErr bool
	}{
		{"I22 TOP", "I22", Top, false},
		{"i03 bottom", "I03", Bottom, false},
		{"  I10   Left ", "I10", Left, false},
		{"I44 RIGHT", "I44", Right, false},
		{"I22", "", 0, true},
		{"I22 UP", "", 0, true},
		{"I22 TOP extra", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, d, err := ParseLightID(tt.in)
			if tt.expectErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if id != tt.wantID || d != tt.wantDir {
				t.Errorf("Expected %s %v, got %s %v", tt.wantID, tt.wantDir, id, d)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	for in, want := range map[string]Color{"red": Red, "ROJO": Red, "green": Green, " verde ": Green} {
		got, err := ParseColor(in)
		if err != nil || got != want {
			t.Errorf("ParseColor(%q): expected %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParseColor("amber"); !errors.Is(err, ErrInvalidColor) {
		t.Errorf("Expected ErrInvalidColor, got %v", err)
	}
}

// assertPaired checks that every fully active, non-overridden intersection
// shows green on exactly one axis.
func assertPaired(t *testing.T, s *Simulation) {
	t.Helper()
	for _, in := range s.intersections {
		all := true
		for _, l := range in.Lights {
			all = all && l.Cycling()
		}
		if !all {
			continue
		}
		top := in.Lights[Top].color(&in.Clock)
		bottom := in.Lights[Bottom].color(&in.Clock)
		left := in.Lights[Left].color(&in.Clock)
		right := in.Lights[Right].color(&in.Clock)
		if top != bottom || left != right {
			t.Fatalf("%s at %v: paired lights differ: top=%s bottom=%s left=%s right=%s",
				in.ID, s.now, top, bottom, left, right)
		}
		if top == left {
			t.Fatalf("%s at %v: both axes %s", in.ID, s.now, top)
		}
	}
}

func TestLights_PairingHoldsEveryStep(t *testing.T) {
	s := newEmptySim(t, openOptions())
	rng := rand.New(rand.NewSource(7))

	assertPaired(t, s)
	for i := 0; i < 2000; i++ {
		s.Step(time.Duration(rng.Intn(400)+1) * time.Millisecond)
		assertPaired(t, s)
	}

	// Reactivating lights must not break pairing either.
	deactivateAll(t, s, "I22")
	s.Step(3 * time.Second)
	for _, d := range Directions {
		mustChange(t)(s.ActivateLight("I22", d))
		s.Step(1700 * time.Millisecond)
	}
	assertPaired(t, s)
}

func TestLights_AutomaticCycle(t *testing.T) {
	s := newEmptySim(t, openOptions())

	check := func(wantVertical Color) {
		t.Helper()
		v, _ := s.LightColor("I11", Top)
		h, _ := s.LightColor("I11", Left)
		if v != wantVertical {
			t.Errorf("At %v expected vertical %s, got %s", s.now, wantVertical, v)
		}
		if h == v {
			t.Errorf("At %v expected horizontal opposite of vertical, got %s", s.now, h)
		}
	}

	check(Green)
	s.Step(5 * time.Second)
	check(Green)
	s.Step(time.Second)
	check(Red)
	s.Step(6 * time.Second)
	check(Green)
	// A long step crosses one boundary and carries the remainder.
	s.Step(7 * time.Second)
	check(Red)
	s.Step(5 * time.Second)
	check(Green)
}

func TestLights_ManualOverride(t *testing.T) {
	s := newEmptySim(t, openOptions())

	mustChange(t)(s.SetLightColor("I11", Top, Red))
	changed, err := s.SetLightColor("I11", Top, Red)
	if err != nil || changed {
		t.Errorf("Expected repeated override to be a no-op, got changed=%v err=%v", changed, err)
	}

	for i := 0; i < 5; i++ {
		s.Step(6 * time.Second)
		if c, _ := s.LightColor("I11", Top); c != Red {
			t.Fatalf("Expected override to survive cycling, got %s", c)
		}
	}

	mustChange(t)(s.ResetLight("I11", Top))
	top, _ := s.LightColor("I11", Top)
	bottom, _ := s.LightColor("I11", Bottom)
	if top != bottom {
		t.Errorf("Expected reset light to rejoin its pair, got top=%s bottom=%s", top, bottom)
	}
}

func TestLights_ActivationRules(t *testing.T) {
	s := newEmptySim(t, openOptions())

	t.Run("side without street stays off", func(t *testing.T) {
		changed, err := s.ActivateLight("I00", Top)
		if err != nil || changed {
			t.Errorf("Expected no-op, got changed=%v err=%v", changed, err)
		}
		if c, _ := s.LightColor("I00", Top); c != Off {
			t.Errorf("Expected light off, got %s", c)
		}
	})

	t.Run("deactivate is idempotent", func(t *testing.T) {
		mustChange(t)(s.DeactivateLight("I11", Left))
		changed, err := s.DeactivateLight("I11", Left)
		if err != nil || changed {
			t.Errorf("Expected no-op, got changed=%v err=%v", changed, err)
		}
	})

	t.Run("forcing an inactive light is ignored", func(t *testing.T) {
		changed, err := s.SetLightColor("I11", Left, Green)
		if err != nil || changed {
			t.Errorf("Expected no-op, got changed=%v err=%v", changed, err)
		}
	})

	t.Run("reactivation restarts a stopped clock", func(t *testing.T) {
		deactivateAll(t, s, "I11")
		s.Step(7 * time.Second) // clock now on the horizontal phase
		mustChange(t)(s.ActivateLight("I11", Left))
		if c, _ := s.LightColor("I11", Left); c != Red {
			t.Errorf("Expected horizontal light to restart red, got %s", c)
		}
		mustChange(t)(s.ActivateLight("I11", Top))
		if c, _ := s.LightColor("I11", Top); c != Green {
			t.Errorf("Expected vertical light to join green, got %s", c)
		}
	})

	t.Run("unknown ids", func(t *testing.T) {
		if _, err := s.ActivateLight("I99", Top); !errors.Is(err, ErrUnknownIntersection) {
			t.Errorf("Expected ErrUnknownIntersection, got %v", err)
		}
		if _, err := s.DeactivateLight("I11", Direction(9)); !errors.Is(err, ErrInvalidDirection) {
			t.Errorf("Expected ErrInvalidDirection, got %v", err)
		}
	})
}

func TestLights_SetInterval(t *testing.T) {
	s := newEmptySim(t, openOptions())

	if _, err := s.SetLightInterval("I11", Top, 0); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("Expected ErrInvalidInterval, got %v", err)
	}

	mustChange(t)(s.SetLightColor("I11", Left, Green))
	mustChange(t)(s.SetLightInterval("I11", Left, 2))

	in := intersection(t, s, "I11")
	if in.Clock.Interval != 2*time.Second {
		t.Errorf("Expected 2s interval, got %v", in.Clock.Interval)
	}
	if in.Lights[Left].hasOverride {
		t.Errorf("Expected interval change to clear the override")
	}
	s.Step(2 * time.Second)
	if c, _ := s.LightColor("I11", Left); c != Green {
		t.Errorf("Expected horizontal green after one short interval, got %s", c)
	}
}
