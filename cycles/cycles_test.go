package cycles

import "testing"

func TestReadAdvances(t *testing.T) {
	first := Read()
	var last uint64
	for i := 0; i < 1_000_000; i++ {
		last = Read()
		if last != first {
			break
		}
	}
	if last == first {
		t.Fatalf("%s counter stuck at %d", Name(), first)
	}
}

func TestName(t *testing.T) {
	if Name() == "" {
		t.Error("Name() is empty")
	}
}

func TestSwitchCSRUnavailable(t *testing.T) {
	csr, ok := NewSwitchCSR()
	if ok {
		t.Skip("running under xvisor")
	}
	csr.Arm()
	if csr.Occurred() {
		t.Error("Occurred() = true without a context-switch register")
	}
	csr.Disarm()
}
