package geo

import "testing"

func TestEncode(t *testing.T) {
	tests := []struct {
		name      string
		point     Point
		precision int
		want      string
	}{
		// Reference value from the original geohash paper example.
		{"jutland", Point{Lat: 57.64911, Lng: 10.40744}, 11, "u4pruydqqvj"},
		{"shinjuku", Point{Lat: 35.6895, Lng: 139.6917}, 6, "xn774c"},
		{"origin", Point{Lat: 0, Lng: 0}, 6, "s00000"},
		{"default_precision_on_invalid", Point{Lat: 35.6895, Lng: 139.6917}, 0, "xn774c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Encode(tt.point, tt.precision); got != tt.want {
				t.Errorf("Encode(%v, %d) = %q, want %q", tt.point, tt.precision, got, tt.want)
			}
		})
	}
}

func TestEncodeCoarse(t *testing.T) {
	p := Point{Lat: 35.6895, Lng: 139.6917}
	got := EncodeCoarse(p)
	if len(got) != CoarsePrecision {
		t.Fatalf("EncodeCoarse() length = %d, want %d", len(got), CoarsePrecision)
	}
	if got != Encode(p, CoarsePrecision) {
		t.Errorf("EncodeCoarse() = %q, want %q", got, Encode(p, CoarsePrecision))
	}
}
