package schedule

import (
	"testing"
	"time"
)

func TestParseWindow(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "plain window", input: "08:00-17:00"},
		{name: "wrapping window", input: "22:00-06:00"},
		{name: "with spaces", input: "22:00 - 06:00"},
		{name: "missing dash", input: "22:00", wantErr: true},
		{name: "bad clock", input: "25:00-06:00", wantErr: true},
		{name: "empty start", input: "-06:00", wantErr: true},
		{name: "zero length", input: "06:00-06:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWindow(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseWindow(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestWindowContains(t *testing.T) {
	at := func(hour, minute int) time.Time {
		return time.Date(2024, 6, 1, hour, minute, 0, 0, time.Local)
	}

	tests := []struct {
		name   string
		window string
		at     time.Time
		want   bool
	}{
		{name: "inside plain window", window: "08:00-17:00", at: at(12, 0), want: true},
		{name: "start is inclusive", window: "08:00-17:00", at: at(8, 0), want: true},
		{name: "end is exclusive", window: "08:00-17:00", at: at(17, 0), want: false},
		{name: "outside plain window", window: "08:00-17:00", at: at(20, 0), want: false},
		{name: "wrap before midnight", window: "22:00-06:00", at: at(23, 0), want: true},
		{name: "wrap after midnight", window: "22:00-06:00", at: at(2, 30), want: true},
		{name: "wrap end exclusive", window: "22:00-06:00", at: at(6, 0), want: false},
		{name: "wrap daytime outside", window: "22:00-06:00", at: at(12, 0), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := ParseWindow(tt.window)
			if err != nil {
				t.Fatalf("ParseWindow(%q) failed: %v", tt.window, err)
			}
			if got := w.Contains(tt.at); got != tt.want {
				t.Errorf("Window(%s).Contains(%s) = %v, want %v", tt.window, tt.at.Format("15:04"), got, tt.want)
			}
		})
	}
}
