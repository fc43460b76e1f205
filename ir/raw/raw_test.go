package raw

import "testing"

func TestDictSetOnZeroValue(t *testing.T) {
	var d DictObj
	d.Set(NameObj{Val: "Title"}, Str([]byte("hello")))
	got, ok := d.Get(NameObj{Val: "Title"})
	if !ok {
		t.Fatalf("key not found after Set")
	}
	s, ok := got.(StringObj)
	if !ok {
		t.Fatalf("unexpected type %T", got)
	}
	if string(s.Value()) != "hello" {
		t.Fatalf("got %q want %q", s.Value(), "hello")
	}
}

func TestArrayGetBounds(t *testing.T) {
	arr := NewArray(NumberInt(1), NumberInt(2))
	if _, ok := arr.Get(-1); ok {
		t.Fatalf("negative index should not resolve")
	}
	if _, ok := arr.Get(2); ok {
		t.Fatalf("out-of-range index should not resolve")
	}
	o, ok := arr.Get(1)
	if !ok {
		t.Fatalf("index 1 missing")
	}
	if n := o.(NumberObj); n.Int() != 2 {
		t.Fatalf("got %d want 2", n.Int())
	}
}

func TestNumberFloatCoercion(t *testing.T) {
	if f := NumberInt(7).Float(); f != 7 {
		t.Fatalf("integer Float() = %v", f)
	}
	n := NumberFloat(2.5)
	if n.IsInteger() {
		t.Fatalf("float reported as integer")
	}
	if n.Float() != 2.5 {
		t.Fatalf("got %v want 2.5", n.Float())
	}
}

func TestRefString(t *testing.T) {
	if s := Ref(12, 0).Ref().String(); s != "12 0 R" {
		t.Fatalf("got %q", s)
	}
}
