package monitor

import (
	"errors"
	"reflect"
	"testing"

	"github.com/holygeek00/lite-wanmon/pkg/models"
)

func TestLossWindow(t *testing.T) {
	w := NewLossWindow(3)

	// 初始状态
	if w.Len() != 0 {
		t.Errorf("Initial length should be 0, got %d", w.Len())
	}
	if w.Full() {
		t.Error("empty window should not be full")
	}

	w.Add(10)
	if w.Len() != 1 {
		t.Errorf("Length should be 1, got %d", w.Len())
	}

	w.Add(20)
	w.Add(30)
	if !w.Full() {
		t.Error("window should be full after 3 samples")
	}

	// 添加第 4 个，应该覆盖第 1 个
	w.Add(40)
	if w.Len() != 3 {
		t.Errorf("Length should still be 3, got %d", w.Len())
	}
	if got := w.Values(); !reflect.DeepEqual(got, []float64{20, 30, 40}) {
		t.Errorf("Values() = %v, want [20 30 40]", got)
	}
}

func TestLossWindowAverage(t *testing.T) {
	w := NewLossWindow(3)

	if w.Average() != 0 {
		t.Errorf("empty window average should be 0, got %v", w.Average())
	}

	w.Add(60)
	w.Add(70)
	w.Add(80)
	if w.Average() != 70 {
		t.Errorf("Average() = %v, want 70", w.Average())
	}
}

func TestLossWindowOverflow(t *testing.T) {
	w := NewLossWindow(3)

	// 添加 5 个值，验证只保留最后 3 个
	for i := 1; i <= 5; i++ {
		w.Add(float64(i * 10))
	}

	if w.Len() != 3 {
		t.Errorf("Length should be 3, got %d", w.Len())
	}
	// 最后 3 个值是 30, 40, 50
	if w.Average() != 40 {
		t.Errorf("Average() = %v, want 40", w.Average())
	}
}

func TestLossWindowClear(t *testing.T) {
	w := NewLossWindow(2)
	w.Add(100)
	w.Add(100)
	w.Clear()

	if w.Len() != 0 || w.Average() != 0 || len(w.Values()) != 0 {
		t.Errorf("cleared window should be empty, got len=%d avg=%v", w.Len(), w.Average())
	}

	w.Add(5)
	if got := w.Values(); !reflect.DeepEqual(got, []float64{5}) {
		t.Errorf("Values() after clear = %v, want [5]", got)
	}
}

func TestNewLossWindowMinimumCapacity(t *testing.T) {
	w := NewLossWindow(0)
	if w.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1", w.Cap())
	}
}

func TestTrackerRecordAndAverage(t *testing.T) {
	tr := NewTracker([]string{"WAN_DHCP", "WAN2"}, 3)

	avg, err := tr.SlidingAverage("WAN_DHCP")
	if err != nil {
		t.Fatalf("SlidingAverage() error = %v", err)
	}
	if avg != 0 {
		t.Errorf("startup average should be 0, got %v", avg)
	}

	for _, loss := range []float64{10, 20, 30, 40} {
		if err := tr.Record("WAN_DHCP", loss); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	avg, _ = tr.SlidingAverage("WAN_DHCP")
	if avg != 30 {
		t.Errorf("SlidingAverage() = %v, want 30", avg)
	}

	// 其他 WAN 不受影响
	other, _ := tr.Snapshot("WAN2")
	if len(other.RecentLosses) != 0 {
		t.Errorf("WAN2 should have no samples, got %v", other.RecentLosses)
	}
}

func TestTrackerUnknownWAN(t *testing.T) {
	tr := NewTracker([]string{"WAN_DHCP"}, 3)

	if err := tr.Record("WAN9", 10); !errors.Is(err, models.ErrUnknownWAN) {
		t.Errorf("Record() error = %v, want ErrUnknownWAN", err)
	}
	if _, err := tr.SlidingAverage("WAN9"); !errors.Is(err, models.ErrUnknownWAN) {
		t.Errorf("SlidingAverage() error = %v, want ErrUnknownWAN", err)
	}
	if err := tr.Reset("WAN9"); !errors.Is(err, models.ErrUnknownWAN) {
		t.Errorf("Reset() error = %v, want ErrUnknownWAN", err)
	}
	if _, err := tr.Snapshot("WAN9"); !errors.Is(err, models.ErrUnknownWAN) {
		t.Errorf("Snapshot() error = %v, want ErrUnknownWAN", err)
	}
}

func TestTrackerResetIdempotent(t *testing.T) {
	tr := NewTracker([]string{"WAN_DHCP"}, 3)
	_ = tr.Update("WAN_DHCP", func(st *WanState) {
		st.recentLosses.Add(100)
		st.recentLosses.Add(100)
		st.breachCount = 2
		st.fullLossCount = 2
	})

	if err := tr.Reset("WAN_DHCP"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	once, _ := tr.Snapshot("WAN_DHCP")

	if err := tr.Reset("WAN_DHCP"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	twice, _ := tr.Snapshot("WAN_DHCP")

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("state after second reset differs: %+v vs %+v", once, twice)
	}
	if len(twice.RecentLosses) != 0 || twice.BreachCount != 0 || twice.FullLossCount != 0 {
		t.Errorf("reset state should be empty, got %+v", twice)
	}
}

func TestTrackerSnapshotsOrder(t *testing.T) {
	tr := NewTracker([]string{"WAN_C", "WAN_A", "WAN_B"}, 2)

	snaps := tr.Snapshots()
	got := make([]string, 0, len(snaps))
	for _, s := range snaps {
		got = append(got, s.WanID)
	}
	if !reflect.DeepEqual(got, []string{"WAN_C", "WAN_A", "WAN_B"}) {
		t.Errorf("Snapshots() order = %v, want configured order", got)
	}
}

func TestTrackerMarkRemediated(t *testing.T) {
	tr := NewTracker([]string{"WAN_DHCP"}, 3)

	if err := tr.MarkRemediated("WAN_DHCP", models.ActionRestart); err != nil {
		t.Fatalf("MarkRemediated() error = %v", err)
	}
	snap, _ := tr.Snapshot("WAN_DHCP")
	if snap.Remediations != 1 || snap.LastAction != models.ActionRestart || snap.LastActionAt == nil {
		t.Errorf("unexpected snapshot after remediation: %+v", snap)
	}
}
