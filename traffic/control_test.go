package traffic

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"speakcity/shared"

	"github.com/google/go-cmp/cmp"
)

func TestStreetToggles_AreIdempotent(t *testing.T) {
	s := newEmptySim(t, openOptions())

	tests := []struct {
		name        string
		op          func(string) (bool, error)
		wantChanged bool
		wantClosed  bool
	}{
		{"first close", s.CloseStreet, true, true},
		{"second close", s.CloseStreet, false, true},
		{"first open", s.OpenStreet, true, false},
		{"second open", s.OpenStreet, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.Metrics()
			changed, err := tt.op("H21")
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if changed != tt.wantChanged {
				t.Errorf("Expected changed=%v, got %v", tt.wantChanged, changed)
			}
			if closed, _ := s.StreetClosed("H21"); closed != tt.wantClosed {
				t.Errorf("Expected closed=%v, got %v", tt.wantClosed, closed)
			}
			if !tt.wantChanged {
				if diff := cmp.Diff(before, s.Metrics()); diff != "" {
					t.Errorf("No-op changed metrics (-before +after):\n%s", diff)
				}
			}
		})
	}
}

func TestStreetToggles_UnknownStreet(t *testing.T) {
	s := newEmptySim(t, DefaultOptions())
	for _, id := range []string{"H99", "", "H11"} { // H11 is excluded
		if _, err := s.CloseStreet(id); !errors.Is(err, ErrUnknownStreet) {
			t.Errorf("CloseStreet(%q): expected ErrUnknownStreet, got %v", id, err)
		}
		if _, err := s.OpenStreet(id); !errors.Is(err, ErrUnknownStreet) {
			t.Errorf("OpenStreet(%q): expected ErrUnknownStreet, got %v", id, err)
		}
	}
}

func TestOpenAllStreets(t *testing.T) {
	s := newEmptySim(t, openOptions())
	for _, id := range []string{"H21", "V03", "H40"} {
		mustChange(t)(s.CloseStreet(id))
	}
	got := s.OpenAllStreets()
	sort.Strings(got)
	if diff := cmp.Diff([]string{"H21", "H40", "V03"}, got); diff != "" {
		t.Errorf("Opened streets mismatch (-want +got):\n%s", diff)
	}
	if again := s.OpenAllStreets(); len(again) != 0 {
		t.Errorf("Expected nothing left to open, got %v", again)
	}
}

func TestPeriferico(t *testing.T) {
	s := newEmptySim(t, openOptions())
	mustChange(t)(s.CloseStreet("H00"))

	closed := s.ClosePeriferico()
	if len(closed) != 15 {
		t.Errorf("Expected 15 newly closed perimeter streets, got %d", len(closed))
	}
	if m := s.Metrics(); m.ClosedStreets != 16 || m.OpenStreets != 24 {
		t.Errorf("Expected 16 closed / 24 open, got %d / %d", m.ClosedStreets, m.OpenStreets)
	}
	if closed, _ := s.StreetClosed("H21"); closed {
		t.Errorf("Expected inner street to stay open")
	}
	if again := s.ClosePeriferico(); len(again) != 0 {
		t.Errorf("Expected second close to be a no-op, got %v", again)
	}

	opened := s.OpenPeriferico()
	if len(opened) != 16 {
		t.Errorf("Expected 16 reopened streets, got %d", len(opened))
	}
}

func TestCloseStreetFor_ReopensAutomatically(t *testing.T) {
	s := newEmptySim(t, openOptions())
	var events []Event
	s.SetEventHandler(func(e Event) { events = append(events, e) })

	mustChange(t)(s.CloseStreetFor("H21", 2*time.Second))
	s.Step(1500 * time.Millisecond)
	if closed, _ := s.StreetClosed("H21"); !closed {
		t.Fatalf("Expected street still closed")
	}
	s.Step(600 * time.Millisecond)
	if closed, _ := s.StreetClosed("H21"); closed {
		t.Errorf("Expected street reopened after its closure expired")
	}
	if got := countEvents(events, EventStreetOpened); len(got) != 1 || got[0].Subject != "H21" {
		t.Errorf("Expected one reopen event for H21, got %+v", got)
	}

	// A manual open cancels the timer.
	mustChange(t)(s.CloseStreetFor("H22", time.Second))
	mustChange(t)(s.OpenStreet("H22"))
	mustChange(t)(s.CloseStreet("H22"))
	s.Step(2 * time.Second)
	if closed, _ := s.StreetClosed("H22"); !closed {
		t.Errorf("Expected permanent closure to survive the old timer")
	}
}

func TestCloseStreetFor_LeavesClosedStreetAlone(t *testing.T) {
	s := newEmptySim(t, openOptions())

	mustChange(t)(s.CloseStreet("H10"))
	changed, err := s.CloseStreetFor("H10", time.Second)
	if err != nil || changed {
		t.Fatalf("Expected no change on a closed street, got changed=%v err=%v", changed, err)
	}
	s.Step(2 * time.Second)
	if closed, _ := s.StreetClosed("H10"); !closed {
		t.Errorf("Expected manual closure to stay permanent")
	}

	mustChange(t)(s.CloseStreetFor("H11", time.Second))
	if changed, _ := s.CloseStreetFor("H11", 10*time.Second); changed {
		t.Errorf("Expected second timed closure to be a no-op")
	}
	s.Step(1500 * time.Millisecond)
	if closed, _ := s.StreetClosed("H11"); closed {
		t.Errorf("Expected H11 to reopen on its original schedule")
	}
}

func TestSetDensity_HighToLowExactCount(t *testing.T) {
	s, err := New(DefaultOptions(), rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	streets := len(s.streets)

	n, err := s.SetDensity(DensityHigh)
	if err != nil {
		t.Fatalf("SetDensity(high): %v", err)
	}
	if n != streets*3 {
		t.Errorf("Expected %d cars at high density, got %d", streets*3, n)
	}
	highMax := s.cars[len(s.cars)-1].ID

	for i := 0; i < 50; i++ {
		s.Step(frame)
	}

	n, err = s.SetDensity(DensityLow)
	if err != nil {
		t.Fatalf("SetDensity(low): %v", err)
	}
	if n != streets || s.Metrics().Cars != streets {
		t.Errorf("Expected exactly %d cars at low density, got %d", streets, n)
	}
	if s.cars[0].ID <= highMax {
		t.Errorf("Expected car ids to keep increasing, got %d after %d", s.cars[0].ID, highMax)
	}
	for i, c := range s.cars[len(s.cars):cap(s.cars)] {
		if c != nil {
			t.Errorf("Expected no retained car past the population, slot %d holds car %d", len(s.cars)+i, c.ID)
		}
	}
	if _, err := s.SetDensity("rush"); !errors.Is(err, ErrInvalidDensity) {
		t.Errorf("Expected ErrInvalidDensity, got %v", err)
	}
}

func TestParseDensity(t *testing.T) {
	tests := map[string]Density{
		"low": DensityLow, "BAJA": DensityLow,
		"medium": DensityMedium, "media": DensityMedium,
		"high": DensityHigh, " alta ": DensityHigh,
	}
	for in, want := range tests {
		got, err := ParseDensity(in)
		if err != nil || got != want {
			t.Errorf("ParseDensity(%q): expected %s, got %s (%v)", in, want, got, err)
		}
	}
}

func TestExecute_Vocabulary(t *testing.T) {
	s := newEmptySim(t, openOptions())

	tests := []struct {
		name        string
		cmd         shared.Command
		wantOK      bool
		wantChanged bool
		wantErr     error
		check       func(t *testing.T)
	}{
		{
			name:        "spanish close",
			cmd:         shared.Command{Action: "cerrar_calle", Target: "h21", Cause: "obras"},
			wantOK:      true,
			wantChanged: true,
			check: func(t *testing.T) {
				if closed, _ := s.StreetClosed("H21"); !closed {
					t.Errorf("Expected H21 closed")
				}
			},
		},
		{
			name:   "close again is a no-op",
			cmd:    shared.Command{Action: "close_street", Target: "H21"},
			wantOK: true,
		},
		{
			name:        "timed closure",
			cmd:         shared.Command{Action: "bloquear_via", Target: "V12", Seconds: 30},
			wantOK:      true,
			wantChanged: true,
		},
		{
			name:        "force red",
			cmd:         shared.Command{Action: "cambiar_semaforo_rojo", Target: "I22 TOP"},
			wantOK:      true,
			wantChanged: true,
			check: func(t *testing.T) {
				if c, _ := s.LightColor("I22", Top); c != Red {
					t.Errorf("Expected I22 TOP red, got %s", c)
				}
			},
		},
		{
			name:        "explicit color",
			cmd:         shared.Command{Action: "set_light_color", Target: "I22 LEFT", Color: "verde"},
			wantOK:      true,
			wantChanged: true,
		},
		{
			name:    "bad color",
			cmd:     shared.Command{Action: "set_light_color", Target: "I22 LEFT", Color: "blue"},
			wantErr: ErrInvalidColor,
		},
		{
			name:        "program interval",
			cmd:         shared.Command{Action: "programar_semaforo", Target: "I22 TOP", Seconds: 10},
			wantOK:      true,
			wantChanged: true,
			check: func(t *testing.T) {
				if in := intersection(t, s, "I22"); in.Clock.Interval != 10*time.Second {
					t.Errorf("Expected 10s interval, got %v", in.Clock.Interval)
				}
			},
		},
		{
			name:        "deactivate",
			cmd:         shared.Command{Action: "desactivar_semaforo", Target: "I33 right"},
			wantOK:      true,
			wantChanged: true,
		},
		{
			name:        "density",
			cmd:         shared.Command{Action: "set_density", Density: "high"},
			wantOK:      true,
			wantChanged: true,
			check: func(t *testing.T) {
				if got := s.Metrics().Cars; got != 120 {
					t.Errorf("Expected 120 cars, got %d", got)
				}
			},
		},
		{
			name:    "unknown street",
			cmd:     shared.Command{Action: "abrir_calle", Target: "H77"},
			wantErr: ErrUnknownStreet,
		},
		{
			name:    "unknown action",
			cmd:     shared.Command{Action: "fly", Target: "H21"},
			wantErr: ErrUnknownAction,
		},
		{
			name:    "malformed light id",
			cmd:     shared.Command{Action: "activar_semaforo", Target: "I22"},
			wantErr: ErrUnknownLight,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantErr != nil {
				if _, _, err := s.Apply(tt.cmd); !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				if res := s.Execute(tt.cmd); res.OK || res.Error == "" {
					t.Errorf("Expected failed result, got %+v", res)
				}
				return
			}
			res := s.Execute(tt.cmd)
			if res.OK != tt.wantOK || res.Changed != tt.wantChanged {
				t.Errorf("Expected ok=%v changed=%v, got %+v", tt.wantOK, tt.wantChanged, res)
			}
			if tt.check != nil {
				tt.check(t)
			}
		})
	}
}

func TestExecute_ReportsChange(t *testing.T) {
	s := newEmptySim(t, openOptions())
	first := s.Execute(shared.Command{Action: "cerrar_calle", Target: "H30"})
	second := s.Execute(shared.Command{Action: "cerrar_calle", Target: "H30"})
	if !first.OK || !first.Changed || len(first.Affected) != 1 || first.Affected[0] != "H30" {
		t.Errorf("Expected first close to change H30, got %+v", first)
	}
	if !second.OK || second.Changed {
		t.Errorf("Expected second close to be an ok no-op, got %+v", second)
	}
}

func TestExecuteBatch_RunsInOrder(t *testing.T) {
	s := newEmptySim(t, openOptions())
	resp := s.ExecuteBatch(shared.CommandBatch{
		RequestID: "req-1",
		Commands: []shared.Command{
			{Action: "cerrar_calle", Target: "H21"},
			{Action: "nonsense"},
			{Action: "abrir_calle", Target: "H21"},
			{Action: "cerrar_periferico"},
		},
	})
	if resp.RequestID != "req-1" || len(resp.Results) != 4 {
		t.Fatalf("Unexpected response %+v", resp)
	}
	ok := []bool{resp.Results[0].OK, resp.Results[1].OK, resp.Results[2].OK, resp.Results[3].OK}
	if diff := cmp.Diff([]bool{true, false, true, true}, ok); diff != "" {
		t.Errorf("Result status mismatch (-want +got):\n%s", diff)
	}
	if closed, _ := s.StreetClosed("H21"); closed {
		t.Errorf("Expected H21 reopened by the later command")
	}
	if len(resp.Results[3].Affected) != 16 {
		t.Errorf("Expected 16 perimeter streets affected, got %d", len(resp.Results[3].Affected))
	}
}

func TestApply_AffectedIDs(t *testing.T) {
	s := newEmptySim(t, openOptions())

	tests := []struct {
		cmd  shared.Command
		want []string
	}{
		{cmd: shared.Command{Action: "cerrar_calle", Target: "h21"}, want: []string{"H21"}},
		{cmd: shared.Command{Action: "abrir_calle", Target: " h21 "}, want: []string{"H21"}},
		{cmd: shared.Command{Action: "cambiar_semaforo_rojo", Target: "i11 top"}, want: []string{"I11 TOP"}},
	}
	for _, tt := range tests {
		changed, affected, err := s.Apply(tt.cmd)
		if err != nil || !changed {
			t.Fatalf("%+v: expected a change, got changed=%v err=%v", tt.cmd, changed, err)
		}
		if diff := cmp.Diff(tt.want, affected); diff != "" {
			t.Errorf("%+v: affected mismatch (-want +got):\n%s", tt.cmd, diff)
		}
	}
}

func TestExecute_CarCommands(t *testing.T) {
	s := newEmptySim(t, openOptions())
	c := spawn(t, s, "H21", 1, 20, 80)
	id := fmt.Sprint(c.ID)

	tests := []struct {
		cmd         shared.Command
		wantChanged bool
		wantErr     error
	}{
		{cmd: shared.Command{Action: "detener_auto", Target: id}, wantChanged: true},
		{cmd: shared.Command{Action: "stop_car", Target: "car " + id}},
		{cmd: shared.Command{Action: "reanudar_auto", Target: id}, wantChanged: true},
		{cmd: shared.Command{Action: "resume_car", Target: id}},
		{cmd: shared.Command{Action: "stop_car", Target: "999"}, wantErr: ErrUnknownCar},
		{cmd: shared.Command{Action: "stop_car", Target: "tractor"}, wantErr: ErrUnknownCar},
	}
	for _, tt := range tests {
		changed, affected, err := s.Apply(tt.cmd)
		if !errors.Is(err, tt.wantErr) {
			t.Fatalf("%+v: expected error %v, got %v", tt.cmd, tt.wantErr, err)
		}
		if changed != tt.wantChanged {
			t.Errorf("%+v: expected changed=%v, got %v", tt.cmd, tt.wantChanged, changed)
		}
		if changed && (len(affected) != 1 || affected[0] != "car "+id) {
			t.Errorf("%+v: unexpected affected %v", tt.cmd, affected)
		}
	}

	s.StopCar(c.ID)
	s.Step(frame)
	if c.Motion() != StoppedManual {
		t.Errorf("Expected manual stop, got %s", c.Motion())
	}
}
