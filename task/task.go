package task

import (
	"sync/atomic"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/input"
)

// Context 一次仿真任务
// 功能：加载输入并构建World，把时钟与事件注入服务挂到sidecar上，按syncer的节奏推进仿真
type Context struct {
	job    string
	world  *World
	input  *input.Input
	closed atomic.Bool

	sidecar *syncer.Sidecar
	served  chan struct{} // sidecar.Serve返回后关闭
}

// NewContext 加载地图与场景，构建World并注册RPC服务
// 说明：serve为false时不启动sidecar服务（测试或嵌入使用）
func NewContext(job, cacheDir string, c config.Config, sidecar *syncer.Sidecar, serve bool) *Context {
	in := input.Init(c, cacheDir)
	world, err := NewWorld(c, in.Map, in.Scene)
	if err != nil {
		log.Panicf("failed to build world: %v", err)
	}
	world.Clock().Register(sidecar)
	world.Events().Register(sidecar)

	ctx := &Context{
		job:     job,
		world:   world,
		input:   in,
		sidecar: sidecar,
		served:  make(chan struct{}),
	}
	if serve {
		go func() {
			defer close(ctx.served)
			if err := sidecar.Serve(); err != nil {
				log.Panicf("failed to serve: %v", err)
			}
		}()
	} else {
		close(ctx.served)
	}
	return ctx
}

func (ctx *Context) GetInput() *input.Input {
	return ctx.input
}

func (ctx *Context) World() *World {
	return ctx.world
}

func (ctx *Context) Job() string {
	return ctx.job
}

// Close 释放World并等待sidecar退出，可重复调用
func (ctx *Context) Close() {
	if !ctx.closed.CompareAndSwap(false, true) {
		return
	}
	ctx.world.Release()
	ctx.sidecar.Close()
	<-ctx.served
}
