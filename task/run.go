package task

import (
	"flag"
)

const (
	SelfName = "trafficflow" // 本程序在模拟任务集群中的名字
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// heartbeat 定期输出时间与生成统计
func (ctx *Context) heartbeat() {
	clk := ctx.world.Clock()
	if clk.InternalStep%int32(*heartBeatInterval) != 0 {
		return
	}
	stats := ctx.world.Generator().Stats()
	log.Infof(
		"STEP: %d(%s) vehicles=%d spawned=%d gated=%d erased=%d rerouted=%d events=%d",
		clk.InternalStep, clk,
		ctx.world.VehicleManager().GetVehicleCount(),
		stats.Spawned, stats.Gated, stats.Erased, stats.Rerouted,
		len(ctx.world.Events().Actions()),
	)
}

// Run 主循环，直到syncer要求退出或到达结束步
// 说明：每步先完成准备阶段并通知syncer，再执行更新阶段
func (ctx *Context) Run() {
	clk := ctx.world.Clock()
	clk.Init()
	ctx.sidecar.Step(false)
	for !ctx.closed.Load() {
		ctx.world.Prepare()
		ctx.heartbeat()
		log.Debugf("step %d: prepared", clk.InternalStep)
		ctx.sidecar.NotifyStepReady()
		ctx.world.Update()
		log.Debugf("step %d: updated", clk.InternalStep)
		if ctx.sidecar.Step(clk.InternalStep+1 >= clk.END_STEP) {
			break
		}
	}
	log.Infof("engine complete")
	ctx.Close()
}
