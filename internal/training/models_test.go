package training

import "testing"

func TestStatus_ForwardOnly(t *testing.T) {
	all := []Status{StatusPending, StatusTraining, StatusReady, StatusError}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusTraining}: true,
		{StatusPending, StatusError}:    true,
		{StatusTraining, StatusReady}:   true,
		{StatusTraining, StatusError}:   true,
	}
	for _, from := range all {
		for _, to := range all {
			if got := from.CanTransitionTo(to); got != allowed[[2]Status{from, to}] {
				t.Fatalf("%s -> %s: expected %v, got %v", from, to, allowed[[2]Status{from, to}], got)
			}
		}
	}

	for _, s := range all {
		want := s == StatusReady || s == StatusError
		if s.Terminal() != want {
			t.Fatalf("%s: terminal=%v", s, s.Terminal())
		}
	}
}

func TestModelVariant_Valid(t *testing.T) {
	if !ModelGenjiJP6Bv2.Valid() || !Model2_7B.Valid() {
		t.Fatalf("known variants must be valid")
	}
	if ModelVariant("6b-v4").Valid() || ModelVariant("").Valid() {
		t.Fatalf("variants are matched exactly")
	}
}
