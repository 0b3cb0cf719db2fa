package event

import (
	"fmt"
	"sync"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/clock"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/container"
)

// System 事件注入系统
// 功能：接收事件批次，按开始时间排队，每步对生效事件执行Done，车辆更新后恢复期望速度并释放过期事件
// 说明：InjectTrafficEvent可在仿真步之间由RPC并发调用，其余方法只在仿真主循环中调用
type System struct {
	ctx entity.ITaskContext

	mu      sync.Mutex
	pending *container.PriorityQueue[Action] // 按开始时间（毫秒）排序
	actions []Action
}

// NewSystem 创建事件注入系统
func NewSystem(ctx entity.ITaskContext) *System {
	return &System{
		ctx:     ctx,
		pending: container.NewPriorityQueue[Action](),
	}
}

// InjectTrafficEvent 注入JSON格式的事件批次
// 返回：本批次是否至少创建了一个事件
// 说明：天气、事故、管控三类事件分别受weather_enable、event_enable、control_enable开关控制
func (s *System) InjectTrafficEvent(data []byte) bool {
	batch, err := ParseBatch(data)
	if err != nil {
		log.Warnf("reject event batch: %v", err)
		eventsRejected.Inc()
		return false
	}
	return s.InjectBatch(batch)
}

// InjectBatch 注入已解析的事件批次
func (s *System) InjectBatch(batch *Batch) bool {
	label := fmt.Sprint(batch.BatchJobID)
	if batch.BatchJobID == 0 {
		label = uuid.NewString()
	}
	logger := log.WithField("batch", label)
	created := make([]Action, 0, len(batch.EventList))
	for _, ev := range batch.EventList {
		enabled := (batch.WeatherEnable && ev.Type.IsWeather()) ||
			(batch.EventEnable && ev.Type.IsIncident()) ||
			(batch.ControlEnable && ev.Type.IsControl())
		if !enabled {
			logger.Infof("event %d (%s) disabled by batch switches", ev.ID, ev.Type)
			continue
		}
		a, err := NewAction(s.ctx, ev)
		if err != nil {
			logger.Warnf("inject event create failure: %v", err)
			eventsRejected.Inc()
			continue
		}
		created = append(created, a)
		eventsInjected.WithLabelValues(string(ev.Type)).Inc()
	}
	s.mu.Lock()
	for _, a := range created {
		s.pending.Push(a, a.Raw().StartMs())
	}
	s.mu.Unlock()
	logger.Infof("user %q: %d of %d events accepted", batch.UserID, len(created), len(batch.EventList))
	return len(created) > 0
}

// activate 将已到开始时间的事件移入生效列表
func (s *System) activate(clk *clock.Clock) {
	s.mu.Lock()
	ready := s.pending.PopUntil(clk.TimeStampMs())
	s.mu.Unlock()
	if len(ready) > 0 {
		s.actions = append(s.actions, ready...)
		eventsActive.Set(float64(len(s.actions)))
	}
}

// InjectTrafficEventHandler 车辆更新前调用，对生效事件执行Done
func (s *System) InjectTrafficEventHandler(clk *clock.Clock, elemMgr entity.IElementManager) {
	s.activate(clk)
	for _, a := range s.actions {
		if a.NeedDone(clk) {
			a.Done(elemMgr)
		}
	}
}

// InjectTrafficEventHandlerPost 车辆更新后调用
// 算法说明：
// 1. 不再受任何生效限速类事件影响的车辆恢复原始期望速度
// 2. 到达结束时间的事件释放障碍物并移出生效列表
func (s *System) InjectTrafficEventHandlerPost(clk *clock.Clock, elemMgr entity.IElementManager) {
	s.PostDone(clk, elemMgr)
	kept := s.actions[:0]
	for _, a := range s.actions {
		if a.NeedRelease(clk) {
			log.Infof("release event %d (%s)", a.EventID(), a.Type())
			a.Release(elemMgr)
			continue
		}
		kept = append(kept, a)
	}
	clear(s.actions[len(kept):])
	s.actions = kept
	eventsActive.Set(float64(len(s.actions)))
}

// PostDone 恢复不再满足条件的车辆的期望速度
func (s *System) PostDone(clk *clock.Clock, elemMgr entity.IElementManager) {
	velocity := make([]VelocityAction, 0)
	for _, a := range s.actions {
		if va, ok := a.(VelocityAction); ok && a.NeedDone(clk) {
			velocity = append(velocity, va)
		}
	}
	parallel.GoFor(elemMgr.SearchElementByType(), func(v entity.IVehicle) {
		if v.DesiredV() == v.RawDesiredV() {
			return
		}
		if lo.ContainsBy(velocity, func(a VelocityAction) bool {
			_, ok := a.Override(v)
			return ok
		}) {
			return
		}
		v.ResetDesiredV()
	})
}

// Release 释放全部事件
func (s *System) Release(elemMgr entity.IElementManager) {
	s.mu.Lock()
	s.pending.Clear()
	s.mu.Unlock()
	for _, a := range s.actions {
		a.Release(elemMgr)
		a.Clear()
	}
	s.actions = nil
	eventsActive.Set(0)
}

// Actions 生效中的事件
func (s *System) Actions() []Action {
	return s.actions
}

// PendingCount 尚未开始的事件数
func (s *System) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}
