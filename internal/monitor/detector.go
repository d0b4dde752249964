package monitor

import (
	"fmt"

	"github.com/holygeek00/lite-wanmon/pkg/config"
	"github.com/holygeek00/lite-wanmon/pkg/models"
)

// Thresholds 检测阈值
type Thresholds struct {
	LossPercent       float64
	ConsecutiveChecks int
}

// Strategy 检测策略
// Evaluate 在 WAN 状态锁内被调用，更新状态并返回本周期触发的动作
type Strategy interface {
	Name() string
	Evaluate(st *WanState, r models.Reading, th Thresholds) []models.Action
}

// NewStrategy 按名称创建检测策略
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case config.StrategySlidingAverage:
		return SlidingAverage{}, nil
	case config.StrategyConsecutiveBreach:
		return ConsecutiveBreach{}, nil
	default:
		return nil, fmt.Errorf("unknown detection strategy %q", name)
	}
}

// SlidingAverage 滑动平均策略
//
// 平均丢包率超过阈值、链路在线且窗口已满时触发重启；
// 连续 N 次 100% 丢包时触发接口重置。两个条件都基于记录本次读数之后、
// 任何重置之前的状态判断，同一周期内可以同时触发。
type SlidingAverage struct{}

// Name 策略名称
func (SlidingAverage) Name() string { return config.StrategySlidingAverage }

// Evaluate 实现 Strategy
func (SlidingAverage) Evaluate(st *WanState, r models.Reading, th Thresholds) []models.Action {
	st.recentLosses.Add(r.LossPercent)

	if r.LossPercent == 100.0 {
		st.fullLossCount++
	} else {
		st.fullLossCount = 0
	}

	var actions []models.Action
	if st.recentLosses.Average() > th.LossPercent && r.Status == models.StatusOnline && st.recentLosses.Full() {
		actions = append(actions, models.ActionRestart)
	}
	if st.fullLossCount >= th.ConsecutiveChecks {
		actions = append(actions, models.ActionResetInterface)
	}
	return actions
}

// ConsecutiveBreach 连续超阈值计数策略
//
// 任何一次不超过阈值的读数都会清零两个计数器。完全中断优先：
// 先检查 100% 丢包计数，满足时只触发接口重置。
type ConsecutiveBreach struct{}

// Name 策略名称
func (ConsecutiveBreach) Name() string { return config.StrategyConsecutiveBreach }

// Evaluate 实现 Strategy
func (ConsecutiveBreach) Evaluate(st *WanState, r models.Reading, th Thresholds) []models.Action {
	if r.LossPercent <= th.LossPercent {
		st.breachCount = 0
		st.fullLossCount = 0
		return nil
	}

	st.breachCount++
	if r.LossPercent == 100.0 {
		st.fullLossCount++
	} else {
		st.fullLossCount = 0
	}

	if st.fullLossCount >= th.ConsecutiveChecks {
		return []models.Action{models.ActionResetInterface}
	}
	if st.breachCount >= th.ConsecutiveChecks {
		return []models.Action{models.ActionRestart}
	}
	return nil
}

// Detector 根据读数和历史状态判定是否需要修复
type Detector struct {
	tracker    *Tracker
	strategy   Strategy
	thresholds Thresholds
}

// NewDetector 创建检测器
func NewDetector(tracker *Tracker, strategy Strategy, th Thresholds) *Detector {
	return &Detector{
		tracker:    tracker,
		strategy:   strategy,
		thresholds: th,
	}
}

// Strategy 返回当前策略
func (d *Detector) Strategy() Strategy {
	return d.strategy
}

// Tracker 返回状态跟踪器
func (d *Detector) Tracker() *Tracker {
	return d.tracker
}

// Evaluate 用一次读数更新 WAN 状态并返回判定结果
// 读数无效或 WAN 未配置时返回错误且不修改状态。触发任何动作后该 WAN 的状态被重置，
// Decision 中的计数是重置前的值。
func (d *Detector) Evaluate(r models.Reading) (models.Decision, error) {
	if err := r.Validate(); err != nil {
		return models.Decision{}, err
	}

	var decision models.Decision
	err := d.tracker.Update(r.WanID, func(st *WanState) {
		actions := d.strategy.Evaluate(st, r, d.thresholds)

		decision = models.Decision{
			WanID:         r.WanID,
			Strategy:      d.strategy.Name(),
			Actions:       actions,
			Average:       st.recentLosses.Average(),
			Samples:       st.recentLosses.Len(),
			BreachCount:   st.breachCount,
			FullLossCount: st.fullLossCount,
		}

		reading := r
		st.lastReading = &reading
		st.lastUpdate = d.tracker.now()

		if len(actions) > 0 {
			st.reset()
		}
	})
	if err != nil {
		return models.Decision{}, err
	}
	return decision, nil
}
