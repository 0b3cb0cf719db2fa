package clock_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	clockv1 "git.fiblab.net/sim/protos/v2/go/city/clock/v1"
	"git.fiblab.net/sim/protos/v2/go/city/clock/v1/clockv1connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/clock"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
)

func TestClockTick(t *testing.T) {
	c := clock.New(config.ControlStep{Start: 0, Total: 1000, Interval: 0.1})
	assert.Equal(t, int64(0), c.TimeStampMs())
	for range 150 {
		c.Tick()
	}
	assert.Equal(t, int32(150), c.InternalStep)
	assert.Equal(t, int64(15000), c.TimeStampMs())
	assert.InDelta(t, 15.0, c.PassTime(), 1e-9)
	assert.InDelta(t, 0.1, c.RelativeTime(), 1e-12)
	assert.Equal(t, "00:00:15", c.String())
}

func TestClockStartStep(t *testing.T) {
	c := clock.New(config.ControlStep{Start: 36000, Total: 10, Interval: 1})
	h, m, s := c.GetHourMinuteSecond()
	assert.Equal(t, 10, h)
	assert.Equal(t, 0, m)
	assert.InDelta(t, 0, s, 1e-9)
	assert.Equal(t, int32(36010), c.END_STEP)
	assert.InDelta(t, 0, c.PassTime(), 1e-9)
}

func TestClockNow(t *testing.T) {
	c := clock.New(config.ControlStep{Start: 10, Total: 10, Interval: 0.5})
	c.Tick()
	_, h := clockv1connect.NewClockServiceHandler(c)
	srv := httptest.NewServer(h)
	defer srv.Close()

	client := clockv1connect.NewClockServiceClient(srv.Client(), srv.URL)
	res, err := client.Now(context.Background(), connect.NewRequest(&clockv1.NowRequest{}))
	require.NoError(t, err)
	assert.InDelta(t, 5.5, res.Msg.T, 1e-9)
}
