package scene

import (
	"errors"
	"testing"

	"volslicer/internal/models"
)

func TestPublishSnapshot(t *testing.T) {
	b := NewBus(nil)
	k1 := Key{Scene: "vol0", Axis: 1, Context: "slicer2", Name: StateName}
	k2 := Key{Scene: "vol0", Axis: 0, Context: "slicer1", Name: StateName}
	other := Key{Scene: "vol1", Axis: 0, Context: "slicer3", Name: StateName}

	b.Publish(k1, models.CommittedState{Index: 1})
	b.Publish(k2, models.CommittedState{Index: 2})
	b.Publish(other, models.CommittedState{Index: 3})
	b.Publish(k1, models.CommittedState{Index: 4})

	entries := b.Snapshot(Filter{Scene: "vol0", Name: StateName})
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Key != k2 || entries[1].Key != k1 {
		t.Errorf("Expected entries ordered by context, got %v, %v", entries[0].Key, entries[1].Key)
	}
	if s := entries[1].Value.(models.CommittedState); s.Index != 4 {
		t.Errorf("Expected publication to replace the entry, got index %d", s.Index)
	}

	if scenes := b.Scenes(); len(scenes) != 2 || scenes[0] != "vol0" || scenes[1] != "vol1" {
		t.Errorf("Unexpected scenes %v", scenes)
	}
}

func TestSubscribe(t *testing.T) {
	b := NewBus(nil)
	var got []Entry
	cancel, err := b.Subscribe(Filter{Scene: "vol0", Name: SetPosName}, func(e Entry) {
		got = append(got, e)
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Publish(Key{Scene: "vol0", Context: "slicer1", Name: SetPosName}, 1)
	b.Publish(Key{Scene: "vol0", Context: "slicer1", Name: StateName}, 2)
	b.Publish(Key{Scene: "vol1", Context: "slicer1", Name: SetPosName}, 3)
	if len(got) != 1 || got[0].Value != 1 {
		t.Fatalf("Expected exactly the matching publication, got %v", got)
	}

	cancel()
	b.Publish(Key{Scene: "vol0", Context: "slicer1", Name: SetPosName}, 4)
	if len(got) != 1 {
		t.Errorf("Expected no delivery after cancel, got %v", got)
	}
}

// Deliveries go through the dispatcher rather than running inside Publish.
func TestSubscribeDispatch(t *testing.T) {
	var queue []func()
	b := NewBus(func(fn func()) { queue = append(queue, fn) })

	delivered := 0
	b.Subscribe(Filter{Scene: "s", Name: StateName}, func(Entry) { delivered++ })
	b.Publish(Key{Scene: "s", Name: StateName}, nil)

	if delivered != 0 {
		t.Fatal("Expected delivery to be deferred")
	}
	if len(queue) != 1 {
		t.Fatalf("Expected 1 queued delivery, got %d", len(queue))
	}
	queue[0]()
	if delivered != 1 {
		t.Errorf("Expected 1 delivery, got %d", delivered)
	}
}

func TestBusErrors(t *testing.T) {
	b := NewBus(nil)
	if _, err := b.Subscribe(Filter{}, nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("Expected ErrNilHandler, got %v", err)
	}
	b.Close()
	if err := b.Publish(Key{}, nil); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Expected ErrBusClosed from Publish, got %v", err)
	}
	if _, err := b.Subscribe(Filter{}, func(Entry) {}); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Expected ErrBusClosed from Subscribe, got %v", err)
	}
}

func TestValidateID(t *testing.T) {
	for _, id := range []string{"vol0", "brain-scan_2.a"} {
		if err := ValidateID(id); err != nil {
			t.Errorf("Expected %q to be valid, got %v", id, err)
		}
	}
	for _, id := range []string{"", "my scene", "x/y", "{}", "a?b", "a%20b", "é"} {
		if err := ValidateID(id); !errors.Is(err, ErrInvalidSceneID) {
			t.Errorf("Expected %q to be invalid, got %v", id, err)
		}
	}
}
