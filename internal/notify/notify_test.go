package notify

import "testing"

func TestRecorderKeepsMostRecent(t *testing.T) {
	r := NewRecorder(2)
	Info(r, "one", "")
	Error(r, "two", "")
	Info(r, "three", "")

	got := r.Recent()
	if len(got) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(got))
	}
	if got[0].Title != "two" || got[0].Level != LevelError || got[1].Title != "three" {
		t.Errorf("Unexpected notifications %+v", got)
	}
}

func TestMultiAndNil(t *testing.T) {
	a, b := NewRecorder(0), NewRecorder(0)
	Info(Multi{a, b, Log{}}, "saved", "ok")
	if len(a.Recent()) != 1 || len(b.Recent()) != 1 {
		t.Error("Expected both recorders to receive the notification")
	}
	// A nil notifier is ignored
	Error(nil, "ignored", "")
}
