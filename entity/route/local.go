package route

import (
	"sync"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	routingv2 "git.fiblab.net/sim/protos/v2/go/city/routing/v2"
	"git.fiblab.net/sim/routing/v2/router"
)

// 本地导航服务（道路级）
type LocalRouter struct {
	router *router.Router

	wg sync.WaitGroup
}

// 创建本地导航服务
func NewLocalRouter(mapData *mapv2.Map) *LocalRouter {
	return &LocalRouter{
		router: router.New(mapData, nil),
	}
}

// 路径规划（回调版本）
// 说明：交通流只需要驾驶导航，其他类型返回空结果
func (l *LocalRouter) GetRoute(
	in *routingv2.GetRouteRequest,
	process func(res *routingv2.GetRouteResponse),
) chan struct{} {
	ch := make(chan struct{})
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		res := &routingv2.GetRouteResponse{}
		switch in.GetType() {
		case routingv2.RouteType_ROUTE_TYPE_DRIVING:
			if roadIDs, cost, err := l.router.SearchDriving(in.Start, in.End, in.Time); err != nil {
				log.Debugf("search driving failed from %v to %v at t=%f: %v", in.Start, in.End, in.Time, err)
			} else {
				res.Journeys = append(res.Journeys, drivingJourney(roadIDs, cost))
			}
		default:
			log.Warnf("unsupported route type %v", in.GetType())
		}
		process(res)
		close(ch)
	}()
	return ch
}

// 路径规划（同步版本）
func (l *LocalRouter) GetRouteSync(in *routingv2.GetRouteRequest) *routingv2.GetRouteResponse {
	var res *routingv2.GetRouteResponse
	<-l.GetRoute(in, func(r *routingv2.GetRouteResponse) { res = r })
	return res
}

// 等待所有未完成的请求
func (l *LocalRouter) Close() {
	l.wg.Wait()
}
