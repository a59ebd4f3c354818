package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const rcCarJSON = `{
  "id": "rc_car_01",
  "name": "RC Car",
  "type": "rc_car",
  "description": "1/10 buggy",
  "connection": {
    "preferred_mode": "serial",
    "serial": {"port": "/dev/ttyUSB0"},
    "wifi": {"ip": "192.168.4.1", "enabled": false}
  },
  "capabilities": {"camera": true},
  "limits": {"dir_min": 1100, "dir_max": 1900, "thr_min": 1200, "thr_max": 1800}
}`

const droneYAML = `
id: drone_01
name: Drone
type: drone
connection:
  preferred_mode: wifi
  wifi:
    ip: 10.0.0.7
    enabled: true
limits:
  thr_max: "1700"
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAllSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rc_car.json", rcCarJSON)
	writeFile(t, dir, "drone.yaml", droneYAML)
	writeFile(t, dir, "broken.json", `{"id": "x", "name":`)
	writeFile(t, dir, "missing.json", `{"id": "y"}`)
	writeFile(t, dir, "badmode.yml", "id: z\nname: Z\ntype: boat\nconnection:\n  preferred_mode: bluetooth\n")
	writeFile(t, dir, "duplicate.json", `{"id": "rc_car_01", "name": "Copy", "type": "rc_car"}`)
	writeFile(t, dir, "notes.txt", "ignored")

	profiles, problems := LoadAll(dir)
	if len(profiles) != 2 {
		t.Fatalf("loaded %d profiles, want 2", len(profiles))
	}
	if len(problems) != 4 {
		t.Fatalf("got %d problems (%v), want 4", len(problems), problems)
	}
	for _, err := range problems {
		var le *LoadError
		if !errors.As(err, &le) {
			t.Errorf("problem %v is not a *LoadError", err)
		}
	}
}

func TestLoadAllMissingDirectory(t *testing.T) {
	profiles, problems := LoadAll(filepath.Join(t.TempDir(), "absent"))
	if len(profiles) != 0 || len(problems) != 0 {
		t.Fatalf("LoadAll() = %v, %v; want empty", profiles, problems)
	}
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "drone.yaml", droneYAML)

	p, err := LoadFile(filepath.Join(dir, "drone.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if p.Connection.Serial.Port != DefaultSerialPort || p.Connection.Serial.BaudRate != DefaultBaudRate {
		t.Errorf("serial defaults not applied: %+v", p.Connection.Serial)
	}
	if p.Connection.WiFi.Port != DefaultWiFiPort || !p.Connection.WiFi.Enabled {
		t.Errorf("wifi = %+v", p.Connection.WiFi)
	}

	want := Limits{DirMin: 1000, DirMax: 2000, ThrMin: 1000, ThrMax: 1700}
	if got := p.CommandLimits(); got != want {
		t.Errorf("CommandLimits() = %+v, want %+v", got, want)
	}
}

func TestStore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rc_car.json", rcCarJSON)
	writeFile(t, dir, "drone.yml", droneYAML)

	s := Open(dir)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	list := s.List()
	if list[0].ID != "drone_01" || list[1].ID != "rc_car_01" {
		t.Errorf("List() not ordered by id: %s, %s", list[0].ID, list[1].ID)
	}

	p, err := s.Get("rc_car_01")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Connection.Serial.Port != "/dev/ttyUSB0" || p.Connection.Serial.BaudRate != DefaultBaudRate {
		t.Errorf("serial = %+v", p.Connection.Serial)
	}

	if _, err := s.Get("submarine"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}

	if got := s.LimitsFor("rc_car_01"); got != (Limits{DirMin: 1100, DirMax: 1900, ThrMin: 1200, ThrMax: 1800}) {
		t.Errorf("LimitsFor(rc_car_01) = %+v", got)
	}
	if got := s.LimitsFor("submarine"); got != DefaultLimits() {
		t.Errorf("LimitsFor(unknown) = %+v, want defaults", got)
	}
}

func TestLimitsAllows(t *testing.T) {
	l := DefaultLimits()
	tests := []struct {
		dir, thr int
		want     bool
	}{
		{1500, 1500, true},
		{1000, 2000, true},
		{999, 1500, false},
		{1500, 2001, false},
	}
	for _, tt := range tests {
		if got := l.Allows(tt.dir, tt.thr); got != tt.want {
			t.Errorf("Allows(%d, %d) = %v, want %v", tt.dir, tt.thr, got, tt.want)
		}
	}
}

func TestValidateRejectsInvertedLimits(t *testing.T) {
	p := newDefaultProfile()
	p.ID, p.Name, p.Type = "a", "A", "rc_car"
	p.Limits["dir_min"] = 1800
	p.Limits["dir_max"] = 1200
	if err := p.Validate(); err == nil {
		t.Fatal("expected inverted limits to be rejected")
	}
	if got := p.CommandLimits(); got != DefaultLimits() {
		t.Errorf("CommandLimits() = %+v, want defaults for invalid limits", got)
	}
}

func TestNilStore(t *testing.T) {
	var s *Store
	if _, err := s.Get("x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() on nil store = %v", err)
	}
	if s.Len() != 0 || s.List() != nil {
		t.Error("nil store should be empty")
	}
}
