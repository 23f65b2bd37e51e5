package classify

import (
	"errors"
	"testing"
)

func TestDefaultRegistryIsTotal(t *testing.T) {
	reg := Default()
	for _, kind := range reg.Kinds() {
		entry, err := reg.Lookup(kind)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", kind, err)
		}
		if entry.Name == "" || entry.Color == "" {
			t.Fatalf("kind %s has incomplete entry %+v", kind, entry)
		}
	}
}

func TestLookupUnknownKind(t *testing.T) {
	reg := Default()
	_, err := reg.Lookup(Kind("made_up"))
	if err == nil {
		t.Fatal("expected error for unregistered kind")
	}
	var unknown *UnknownKindError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownKindError, got %T", err)
	}
	if unknown.Kind != "made_up" {
		t.Fatalf("error carries kind %q", unknown.Kind)
	}
}

func TestKindForNameLegacyNames(t *testing.T) {
	reg := Default()
	cases := map[string]Kind{
		"Glacier bed":         BedUnspecified,
		"Cold glacier bed":    BedCold,
		"Glacier bed missing": BedMissing,
		"Temperate ice":       TemperateIce,
	}
	for name, want := range cases {
		got, ok := reg.KindForName(name)
		if !ok {
			t.Fatalf("KindForName(%q) not found", name)
		}
		if got != want {
			t.Fatalf("KindForName(%q) = %s, want %s", name, got, want)
		}
	}
	if _, ok := reg.KindForName("No such layer"); ok {
		t.Fatal("unexpected match for unknown name")
	}
}

func TestRegisterExtendsRegistry(t *testing.T) {
	reg := Default()
	before := len(reg.Kinds())
	reg.Register(Kind("internal_reflector"), Entry{Name: "Internal reflector", Color: "#888888"})
	if len(reg.Kinds()) != before+1 {
		t.Fatalf("expected %d kinds, got %d", before+1, len(reg.Kinds()))
	}
	if !reg.Has(Kind("internal_reflector")) {
		t.Fatal("registered kind not found")
	}
}
