package util

import "testing"

func TestIsSupportedImage(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"bb_press0.png", true},
		{"bb_press1.jpg", true},
		{"BB_PRESS2.JPEG", true},
		{"/press/bb_press3.PNG", true},
		{"notes.txt", false},
		{"cover.gif", false},
		{"noext", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSupportedImage(tt.name); got != tt.want {
				t.Errorf("IsSupportedImage(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}
