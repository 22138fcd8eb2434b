package serial

import "testing"

func TestRegistryExclusiveAcquire(t *testing.T) {
	r := NewRegistry()

	first := &Connection{Port: "COM5"}
	if !r.TryAcquire(first) {
		t.Fatal("first TryAcquire failed on an empty registry")
	}
	if r.TryAcquire(&Connection{Port: "COM5"}) {
		t.Error("second TryAcquire succeeded on a held port")
	}
	if got, _ := r.Get("COM5"); got != first {
		t.Error("Get returned a different record than the holder")
	}

	r.Release("COM5")
	if r.Held("COM5") {
		t.Error("port still held after Release")
	}
	if !r.TryAcquire(&Connection{Port: "COM5"}) {
		t.Error("TryAcquire failed after Release")
	}
}

func TestRegistryPortsIndependent(t *testing.T) {
	r := NewRegistry()
	if !r.TryAcquire(&Connection{Port: "COM1"}) {
		t.Fatal("acquire COM1 failed")
	}
	if !r.TryAcquire(&Connection{Port: "COM2"}) {
		t.Fatal("acquire COM2 failed with an unrelated port held")
	}

	r.Release("COM1")
	if r.Held("COM1") {
		t.Error("COM1 still held")
	}
	if !r.Held("COM2") {
		t.Error("releasing COM1 released COM2")
	}
}

func TestRegistryReleaseUnheld(t *testing.T) {
	r := NewRegistry()
	r.Release("COM9") // must not panic or create a record
	if r.Held("COM9") {
		t.Error("Release created a record")
	}
}

func TestRegistryActiveSorted(t *testing.T) {
	r := NewRegistry()
	for _, port := range []string{"COM3", "COM1", "COM2"} {
		r.TryAcquire(&Connection{Port: port})
	}
	active := r.Active()
	if len(active) != 3 {
		t.Fatalf("Active() returned %d connections, want 3", len(active))
	}
	for i, want := range []string{"COM1", "COM2", "COM3"} {
		if active[i].Port != want {
			t.Errorf("Active()[%d].Port = %q, want %q", i, active[i].Port, want)
		}
	}
}
