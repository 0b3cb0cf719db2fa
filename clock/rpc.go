package clock

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	clockv1 "git.fiblab.net/sim/protos/v2/go/city/clock/v1"
	"git.fiblab.net/sim/protos/v2/go/city/clock/v1/clockv1connect"
	"git.fiblab.net/sim/syncer/v3"
)

// Register 将时钟服务注册到sidecar，外部进程据此对齐交通流的仿真时间
func (c *Clock) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(clockv1connect.ClockServiceName, c.handler)
}

func (c *Clock) handler(opts ...connect.HandlerOption) (string, http.Handler) {
	return clockv1connect.NewClockServiceHandler(c, opts...)
}

// Now 当前仿真时间（秒）
func (c *Clock) Now(_ context.Context, _ *connect.Request[clockv1.NowRequest]) (*connect.Response[clockv1.NowResponse], error) {
	return connect.NewResponse(&clockv1.NowResponse{T: c.T}), nil
}
