package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/holygeek00/lite-wanmon/pkg/config"
	"github.com/holygeek00/lite-wanmon/pkg/logging"
	"github.com/holygeek00/lite-wanmon/pkg/models"
)

// Phase 监控循环所处阶段
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseSampling    Phase = "sampling"
	PhaseEvaluating  Phase = "evaluating"
	PhaseRemediating Phase = "remediating"
	PhaseCooldown    Phase = "cooldown"
)

// Options Monitor 的协作者，Source 和 Remediator 必填
type Options struct {
	Source         ReadingSource
	Remediator     Remediator
	Notifier       Notifier
	Metrics        *Metrics
	InterfaceStats InterfaceStatsFunc
	Clock          clock.Clock
	Logger         logging.Logger
}

// CycleResult 一个监控周期的结果
type CycleResult struct {
	ID          string
	Decisions   []models.Decision
	Remediated  []RemediationResult
	Skipped     []string // 缺失或读数无效的 WAN
	SourceError error
}

// Status 监控循环状态
type Status struct {
	Phase             Phase      `json:"phase"`
	Strategy          string     `json:"strategy"`
	Running           bool       `json:"running"`
	Cycles            uint64     `json:"cycles"`
	FailedCycles      uint64     `json:"failed_cycles"`
	Remediations      uint64     `json:"remediations"`
	LastCycle         *time.Time `json:"last_cycle,omitempty"`
	LastCycleID       string     `json:"last_cycle_id,omitempty"`
	LastError         string     `json:"last_error,omitempty"`
	ConsecutiveFailed int        `json:"consecutive_failed_cycles"`
}

// Monitor 定周期驱动 采样 -> 评估 -> 修复 -> 冷却
// 一个周期完整结束后才开始下一个周期，各 WAN 按配置顺序依次处理
type Monitor struct {
	interval   time.Duration
	cooldown   time.Duration
	threshold  float64
	interfaces map[string]string // wan_id -> 网卡名

	tracker    *Tracker
	detector   *Detector
	source     ReadingSource
	remediator Remediator
	notifier   Notifier
	metrics    *Metrics
	ifstats    InterfaceStatsFunc
	clock      clock.Clock
	logger     logging.Logger

	mu     sync.RWMutex
	status Status
}

// New 根据配置创建监控循环
func New(cfg *config.Config, opts Options) (*Monitor, error) {
	if opts.Source == nil {
		return nil, errors.New("reading source is required")
	}
	if opts.Remediator == nil {
		return nil, errors.New("remediator is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}

	strategy, err := NewStrategy(cfg.Monitor.Strategy)
	if err != nil {
		return nil, err
	}

	tracker := NewTracker(cfg.WANIDs(), cfg.Monitor.Checks())
	tracker.now = opts.Clock.Now

	detector := NewDetector(tracker, strategy, Thresholds{
		LossPercent:       cfg.Monitor.Threshold(),
		ConsecutiveChecks: cfg.Monitor.Checks(),
	})

	interfaces := make(map[string]string)
	for _, w := range cfg.WANs {
		if w.Interface != "" {
			interfaces[w.ID] = w.Interface
		}
	}

	return &Monitor{
		interval:   cfg.Monitor.Interval(),
		cooldown:   cfg.Monitor.Cooldown(),
		threshold:  cfg.Monitor.Threshold(),
		interfaces: interfaces,
		tracker:    tracker,
		detector:   detector,
		source:     opts.Source,
		remediator: opts.Remediator,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		ifstats:    opts.InterfaceStats,
		clock:      opts.Clock,
		logger:     opts.Logger,
		status: Status{
			Phase:    PhaseIdle,
			Strategy: strategy.Name(),
		},
	}, nil
}

// Run 运行监控循环直到 ctx 结束
// 周期内的采样和修复不会被 ctx 中断，ctx 只在周期之间和休眠期间生效
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.status.Running {
		m.mu.Unlock()
		return errors.New("monitor already running")
	}
	m.status.Running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.status.Running = false
		m.status.Phase = PhaseIdle
		m.mu.Unlock()
	}()

	m.logger.Info("Starting WAN monitor",
		logging.F("wans", m.tracker.WanIDs()),
		logging.F("strategy", m.detector.Strategy().Name()),
		logging.F("interval", m.interval.String()),
		logging.F("cooldown", m.cooldown.String()),
		logging.F("loss_threshold_percent", m.threshold),
	)

	for {
		if ctx.Err() != nil {
			break
		}

		res := m.RunCycle(ctx)

		if len(res.Remediated) > 0 && m.cooldown > 0 {
			m.setPhase(PhaseCooldown)
			m.logger.Info("Cooling down after remediation",
				logging.F("cycle_id", res.ID),
				logging.F("cooldown", m.cooldown.String()),
			)
			if !m.sleep(ctx, m.cooldown) {
				break
			}
		}

		m.setPhase(PhaseIdle)
		if !m.sleep(ctx, m.interval) {
			break
		}
	}

	m.logger.Info("WAN monitor stopped")
	return nil
}

// sleep 休眠 d，ctx 结束时返回 false
func (m *Monitor) sleep(ctx context.Context, d time.Duration) bool {
	timer := m.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// RunCycle 执行一个完整的监控周期
func (m *Monitor) RunCycle(ctx context.Context) CycleResult {
	// 已开始的周期运行到结束
	ctx = context.WithoutCancel(ctx)

	res := CycleResult{ID: uuid.NewString()}
	log := m.logger.WithFields(logging.F("cycle_id", res.ID))

	m.setPhase(PhaseSampling)
	snap, err := m.source.Read(ctx)
	if err != nil {
		var srcErr *models.ReadingSourceError
		if !errors.As(err, &srcErr) {
			err = &models.ReadingSourceError{Err: err}
		}
		log.Error("Error reading WAN status, skipping cycle", logging.Err(err))
		res.SourceError = err
		m.metrics.ObserveCycle(cycleResultSourceError)
		m.finishCycle(res)
		return res
	}

	m.setPhase(PhaseEvaluating)
	for _, id := range m.tracker.WanIDs() {
		reading, ok := snap[id]
		if !ok {
			err := &models.ReadingSourceError{WanID: id, Err: models.ErrWANNotInSnapshot}
			log.Error("WAN not found in status output", logging.WAN(id), logging.Err(err))
			m.metrics.ObserveReadingError(id, "missing")
			res.Skipped = append(res.Skipped, id)
			continue
		}
		reading.WanID = id

		log.Info("Current packet loss",
			logging.WAN(id),
			logging.F("loss_percent", reading.LossPercent),
			logging.F("status", reading.RawStatus),
		)

		decision, err := m.detector.Evaluate(reading)
		if err != nil {
			log.Error("Invalid reading, skipping WAN",
				logging.WAN(id),
				logging.F("loss_percent", reading.LossPercent),
				logging.Err(err),
			)
			m.metrics.ObserveReadingError(id, "invalid")
			res.Skipped = append(res.Skipped, id)
			continue
		}
		res.Decisions = append(res.Decisions, decision)
		m.metrics.ObserveDecision(reading, decision)

		log.Info("WAN evaluated",
			logging.WAN(id),
			logging.F("sliding_average", decision.Average),
			logging.F("samples", decision.Samples),
			logging.F("breach_count", decision.BreachCount),
			logging.F("full_loss_count", decision.FullLossCount),
		)

		if !decision.Fired() {
			continue
		}

		log.Warn("WAN degradation detected",
			logging.WAN(id),
			logging.F("decision", decision.Actions),
			logging.F("strategy", decision.Strategy),
			logging.F("sliding_average", decision.Average),
			logging.F("loss_threshold_percent", m.threshold),
		)

		m.setPhase(PhaseRemediating)
		for _, action := range decision.Actions {
			res.Remediated = append(res.Remediated, m.remediate(ctx, log, res.ID, decision, action))
		}
		m.setPhase(PhaseEvaluating)
	}

	m.metrics.ObserveCycle(cycleResultOK)
	m.finishCycle(res)
	return res
}

// remediate 执行一个修复动作；失败只记录日志，状态已经在检测时重置
func (m *Monitor) remediate(ctx context.Context, log logging.Logger, cycleID string, decision models.Decision, action models.Action) RemediationResult {
	if iface, ok := m.interfaces[decision.WanID]; ok && m.ifstats != nil {
		if counters, err := m.ifstats(iface); err != nil {
			log.Warn("Failed to read interface counters", logging.WAN(decision.WanID), logging.Err(err))
		} else if c, ok := counters[iface]; ok {
			log.Info("Interface counters before remediation",
				logging.WAN(decision.WanID),
				logging.F("interface", iface),
				logging.F("errin", c.Errin),
				logging.F("errout", c.Errout),
				logging.F("dropin", c.Dropin),
				logging.F("dropout", c.Dropout),
			)
		}
	}

	result, err := Remediate(ctx, m.remediator, decision.WanID, action)
	if result.WanID == "" {
		result.WanID = decision.WanID
		result.Action = action
	}

	if err != nil {
		log.Error("Remediation attempted but failed",
			logging.WAN(decision.WanID),
			logging.F("action", string(action)),
			logging.F("exit_code", result.ExitCode),
			logging.Err(err),
		)
	} else {
		log.Info("Remediation completed",
			logging.WAN(decision.WanID),
			logging.F("action", string(action)),
		)
	}

	if markErr := m.tracker.MarkRemediated(decision.WanID, action); markErr != nil {
		log.Error("Failed to record remediation", logging.WAN(decision.WanID), logging.Err(markErr))
	}
	m.metrics.ObserveRemediation(decision.WanID, action, err)

	m.mu.Lock()
	m.status.Remediations++
	m.mu.Unlock()

	if m.notifier != nil {
		ev := models.RemediationEvent{
			CycleID:     cycleID,
			WanID:       decision.WanID,
			Action:      action,
			Success:     err == nil,
			ExitCode:    result.ExitCode,
			Output:      result.Output,
			Decision:    decision,
			Timestamp:   m.clock.Now().Unix(),
			DurationMs:  result.Duration.Milliseconds(),
			CommandLine: result.Command,
		}
		if err != nil {
			ev.Error = err.Error()
		}
		m.notifier.Notify(ev)
	}

	return result
}

func (m *Monitor) finishCycle(res CycleResult) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.status.Phase = PhaseIdle
	m.status.Cycles++
	m.status.LastCycle = &now
	m.status.LastCycleID = res.ID
	if res.SourceError != nil {
		m.status.FailedCycles++
		m.status.ConsecutiveFailed++
		m.status.LastError = res.SourceError.Error()
		return
	}
	m.status.ConsecutiveFailed = 0
	m.status.LastError = ""
}

func (m *Monitor) setPhase(p Phase) {
	m.mu.Lock()
	m.status.Phase = p
	m.mu.Unlock()
}

// Status 返回监控循环状态
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := m.status
	if st.LastCycle != nil {
		t := *st.LastCycle
		st.LastCycle = &t
	}
	return st
}

// Interval 轮询间隔
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Tracker 返回 WAN 状态跟踪器
func (m *Monitor) Tracker() *Tracker {
	return m.tracker
}

// WanInterface 返回 WAN 对应的网卡名
func (m *Monitor) WanInterface(id string) (string, bool) {
	iface, ok := m.interfaces[id]
	return iface, ok
}

// InterfaceCounters 读取 WAN 对应网卡的计数器
func (m *Monitor) InterfaceCounters(id string) (*InterfaceCounters, error) {
	iface, ok := m.interfaces[id]
	if !ok || m.ifstats == nil {
		return nil, nil
	}
	counters, err := m.ifstats(iface)
	if err != nil {
		return nil, err
	}
	c, ok := counters[iface]
	if !ok {
		return nil, fmt.Errorf("interface %s not found", iface)
	}
	return &c, nil
}
