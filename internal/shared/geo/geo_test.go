package geo

import "testing"

func TestHaversineKm(t *testing.T) {
	// Jakarta (-6.2, 106.816) to Bandung (-6.9175, 107.6191) ~ 115-120 km
	d := HaversineKm(-6.2, 106.816, -6.9175, 107.6191)
	if d < 100 || d > 140 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestBoundsContainsEdges(t *testing.T) {
	b := Bounds{North: 50, South: 40, East: 10, West: 0}
	cases := []struct {
		lat, lon float64
		want     bool
	}{
		{45, 5, true},
		{50, 10, true},
		{40, 0, true},
		{60, 5, false},
		{45, -5, false},
		{39.999, 5, false},
	}
	for _, c := range cases {
		if got := b.Contains(c.lat, c.lon); got != c.want {
			t.Fatalf("contains(%v,%v) = %v, want %v", c.lat, c.lon, got, c.want)
		}
	}
}

func TestBoundsAntimeridianNotWrapped(t *testing.T) {
	b := Bounds{North: 10, South: -10, East: -170, West: 170}
	if b.Contains(0, 175) || b.Contains(0, -175) {
		t.Fatalf("expected inverted longitude range to contain nothing")
	}
}

func TestBoundsOf(t *testing.T) {
	if _, ok := BoundsOf(nil); ok {
		t.Fatalf("expected no bounds for empty input")
	}
	b, ok := BoundsOf([]Point{{Lat: 10, Lon: 20}, {Lat: -5, Lon: 30}, {Lat: 3, Lon: 25}})
	if !ok {
		t.Fatalf("expected bounds")
	}
	if b.North != 10 || b.South != -5 || b.East != 30 || b.West != 20 {
		t.Fatalf("unexpected bounds: %+v", b)
	}
	if !b.Valid() {
		t.Fatalf("expected valid bounds")
	}
	c := b.Center()
	if c.Lat != 2.5 || c.Lon != 25 {
		t.Fatalf("unexpected center: %+v", c)
	}
}
