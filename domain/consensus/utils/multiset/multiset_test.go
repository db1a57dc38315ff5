package multiset

import "testing"

func TestMultisetOrderIndependence(t *testing.T) {
	first := New()
	first.Add([]byte{1})
	first.Add([]byte{2})

	second := New()
	second.Add([]byte{2})
	second.Add([]byte{1})

	if first.Hash() != second.Hash() {
		t.Fatalf("TestMultisetOrderIndependence: insertion order changed the hash")
	}

	second.Remove([]byte{2})
	if first.Hash() == second.Hash() {
		t.Fatalf("TestMultisetOrderIndependence: removal did not change the hash")
	}
	if second.Hash() == New().Hash() {
		t.Fatalf("TestMultisetOrderIndependence: a non empty multiset hashes like the empty one")
	}
}

func TestMultisetCombineAndSerialize(t *testing.T) {
	lower := New()
	lower.Add([]byte("a"))
	upper := New()
	upper.Add([]byte("b"))

	whole := New()
	whole.Add([]byte("a"))
	whole.Add([]byte("b"))

	combined := lower.Clone()
	combined.Combine(upper)
	if combined.Hash() != whole.Hash() {
		t.Fatalf("TestMultisetCombineAndSerialize: combined multiset differs from the whole")
	}
	if lower.Hash() == whole.Hash() {
		t.Fatalf("TestMultisetCombineAndSerialize: Combine mutated the clone's source")
	}

	deserialized, err := FromBytes(combined.Serialize())
	if err != nil {
		t.Fatalf("TestMultisetCombineAndSerialize: FromBytes: %s", err)
	}
	if deserialized.Hash() != whole.Hash() {
		t.Fatalf("TestMultisetCombineAndSerialize: deserialized multiset differs")
	}

	_, err = FromBytes([]byte{1, 2, 3})
	if err == nil {
		t.Fatalf("TestMultisetCombineAndSerialize: expected an error for a short serialization")
	}
}
