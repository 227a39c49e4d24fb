package provider

import (
	"testing"

	"brewcode-go/errcode"
)

func TestClaimGPIOExclusive(t *testing.T) {
	r := NewHostRegistry()

	h, err := r.ClaimGPIO("led-prep", 4)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if h.Number() != 4 {
		t.Fatalf("want pin 4, got %d", h.Number())
	}
	if _, err := r.ClaimGPIO("led-other", 4); errcode.Of(err) != errcode.PinInUse {
		t.Fatalf("want pin_in_use, got %v", err)
	}
	// Re-claim by the owner is idempotent.
	if _, err := r.ClaimGPIO("led-prep", 4); err != nil {
		t.Fatalf("re-claim: %v", err)
	}

	r.ReleaseGPIO("led-other", 4) // not the owner; no effect
	if owner, _ := r.Owner(4); owner != "led-prep" {
		t.Fatalf("owner changed to %q", owner)
	}
	r.ReleaseGPIO("led-prep", 4)
	if _, ok := r.Owner(4); ok {
		t.Fatal("pin still owned after release")
	}
	if r.Pin(4).IsOutput() {
		t.Fatal("released pin should be back to input")
	}
}

func TestClaimRejectsPinsOffTheBoard(t *testing.T) {
	r := NewHostRegistry()
	for _, n := range []int{0, 1, 3, 6, 34, 40} {
		if _, err := r.ClaimGPIO("x", n); errcode.Of(err) != errcode.UnknownPin {
			t.Fatalf("gpio %d: want unknown_pin, got %v", n, err)
		}
	}
	if _, err := r.ClaimADC("x", 4); errcode.Of(err) != errcode.UnknownPin {
		t.Fatalf("adc 4: want unknown_pin, got %v", err)
	}
}

func TestClaimADC(t *testing.T) {
	r := NewHostRegistry()
	a, err := r.ClaimADC("tank", 34)
	if err != nil {
		t.Fatalf("claim adc: %v", err)
	}
	r.ADC(34).SetRaw(1234)
	if a.Get() != 1234 {
		t.Fatalf("want 1234, got %d", a.Get())
	}
	if _, err := r.ClaimADC("other", 34); errcode.Of(err) != errcode.PinInUse {
		t.Fatalf("want pin_in_use, got %v", err)
	}
}
