// Package monitor 实现 WAN 健康检测与自动修复
package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/holygeek00/lite-wanmon/pkg/models"
)

// LossWindow 固定容量的丢包率滑动窗口
type LossWindow struct {
	data     []float64
	maxSize  int
	position int
	count    int
}

// NewLossWindow 创建新的滑动窗口
func NewLossWindow(size int) *LossWindow {
	if size < 1 {
		size = 1
	}
	return &LossWindow{
		data:    make([]float64, size),
		maxSize: size,
	}
}

// Add 添加一个读数，窗口满时覆盖最旧的读数
func (w *LossWindow) Add(loss float64) {
	w.data[w.position] = loss
	w.position = (w.position + 1) % w.maxSize
	if w.count < w.maxSize {
		w.count++
	}
}

// Average 返回窗口内读数的算术平均，空窗口返回 0
func (w *LossWindow) Average() float64 {
	if w.count == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < w.count; i++ {
		sum += w.data[i]
	}
	return sum / float64(w.count)
}

// Len 返回当前数据量
func (w *LossWindow) Len() int {
	return w.count
}

// Cap 返回窗口容量
func (w *LossWindow) Cap() int {
	return w.maxSize
}

// Full 窗口是否已满
func (w *LossWindow) Full() bool {
	return w.count == w.maxSize
}

// Clear 清空窗口
func (w *LossWindow) Clear() {
	w.position = 0
	w.count = 0
}

// Values 按从旧到新的顺序返回窗口内的读数
func (w *LossWindow) Values() []float64 {
	out := make([]float64, 0, w.count)
	start := (w.position - w.count + w.maxSize) % w.maxSize
	for i := 0; i < w.count; i++ {
		out = append(out, w.data[(start+i)%w.maxSize])
	}
	return out
}

// WanState 单条 WAN 的跟踪状态
type WanState struct {
	mu sync.Mutex

	id            string
	recentLosses  *LossWindow
	breachCount   int
	fullLossCount int

	lastReading  *models.Reading
	lastUpdate   time.Time
	lastAction   models.Action
	lastActionAt time.Time
	remediations int
}

func newWanState(id string, capacity int) *WanState {
	return &WanState{id: id, recentLosses: NewLossWindow(capacity)}
}

// reset 清空历史和计数器，调用方持有锁
func (s *WanState) reset() {
	s.recentLosses.Clear()
	s.breachCount = 0
	s.fullLossCount = 0
}

func (s *WanState) snapshot() models.WanSnapshot {
	snap := models.WanSnapshot{
		WanID:          s.id,
		RecentLosses:   s.recentLosses.Values(),
		SlidingAverage: s.recentLosses.Average(),
		BreachCount:    s.breachCount,
		FullLossCount:  s.fullLossCount,
		LastAction:     s.lastAction,
		Remediations:   s.remediations,
	}
	if s.lastReading != nil {
		r := *s.lastReading
		snap.LastReading = &r
	}
	if !s.lastUpdate.IsZero() {
		t := s.lastUpdate
		snap.LastUpdate = &t
	}
	if !s.lastActionAt.IsZero() {
		t := s.lastActionAt
		snap.LastActionAt = &t
	}
	return snap
}

// Tracker 每条 WAN 的滚动健康状态
// 每个 WanState 有独立的锁，不同 WAN 之间没有锁竞争
type Tracker struct {
	order  []string
	states map[string]*WanState
	now    func() time.Time
}

// NewTracker 为每个 WAN 创建初始为空的状态
func NewTracker(wanIDs []string, consecutiveChecks int) *Tracker {
	t := &Tracker{
		order:  append([]string(nil), wanIDs...),
		states: make(map[string]*WanState, len(wanIDs)),
		now:    time.Now,
	}
	for _, id := range wanIDs {
		t.states[id] = newWanState(id, consecutiveChecks)
	}
	return t
}

func (t *Tracker) state(id string) (*WanState, error) {
	st, ok := t.states[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownWAN, id)
	}
	return st, nil
}

// Record 向 WAN 的滑动窗口追加一个丢包读数
func (t *Tracker) Record(id string, loss float64) error {
	st, err := t.state(id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.recentLosses.Add(loss)
	return nil
}

// SlidingAverage 返回 WAN 当前窗口的平均丢包率，无读数时为 0
func (t *Tracker) SlidingAverage(id string) (float64, error) {
	st, err := t.state(id)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.recentLosses.Average(), nil
}

// Reset 清空 WAN 的丢包历史和计数器，可重复调用
func (t *Tracker) Reset(id string) error {
	st, err := t.state(id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.reset()
	return nil
}

// Update 在 WAN 状态锁内执行 fn
func (t *Tracker) Update(id string, fn func(st *WanState)) error {
	st, err := t.state(id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(st)
	return nil
}

// MarkRemediated 记录一次修复动作
func (t *Tracker) MarkRemediated(id string, action models.Action) error {
	return t.Update(id, func(st *WanState) {
		st.lastAction = action
		st.lastActionAt = t.now()
		st.remediations++
	})
}

// Snapshot 返回 WAN 状态的只读副本
func (t *Tracker) Snapshot(id string) (models.WanSnapshot, error) {
	st, err := t.state(id)
	if err != nil {
		return models.WanSnapshot{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshot(), nil
}

// Snapshots 按配置顺序返回全部 WAN 状态
func (t *Tracker) Snapshots() []models.WanSnapshot {
	out := make([]models.WanSnapshot, 0, len(t.order))
	for _, id := range t.order {
		st := t.states[id]
		st.mu.Lock()
		out = append(out, st.snapshot())
		st.mu.Unlock()
	}
	return out
}

// WanIDs 按配置顺序返回 WAN ID
func (t *Tracker) WanIDs() []string {
	return append([]string(nil), t.order...)
}
