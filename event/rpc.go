package event

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"connectrpc.com/connect"
	"git.fiblab.net/sim/syncer/v3"
)

// ServiceName 事件注入服务名
const ServiceName = "city.trafficflow.event.v1.EventService"

// 请求体上限
const maxBatchBytes = 4 << 20

// InjectResponse 注入结果
type InjectResponse struct {
	Accepted bool `json:"accepted"`
	Pending  int  `json:"pending"`
}

// Register 将事件注入服务注册到sidecar
// 说明：请求体为事件批次JSON，注入不等待仿真步锁
func (s *System) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(
		ServiceName,
		func(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
			return "/" + ServiceName + "/", s.Handler()
		},
		syncer.WithNoLock(),
	)
}

// Handler 事件注入HTTP接口：POST /{ServiceName}/InjectTrafficEvent
func (s *System) Handler() http.Handler {
	errWriter := connect.NewErrorWriter()
	writeErr := func(w http.ResponseWriter, r *http.Request, err *connect.Error) {
		if errWriter.IsSupported(r) {
			_ = errWriter.Write(w, r, err)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /"+ServiceName+"/InjectTrafficEvent", func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBytes))
		if err != nil {
			writeErr(w, r, connect.NewError(connect.CodeInvalidArgument, err))
			return
		}
		batch, err := ParseBatch(data)
		if err != nil {
			eventsRejected.Inc()
			writeErr(w, r, connect.NewError(connect.CodeInvalidArgument, err))
			return
		}
		if len(batch.EventList) == 0 {
			writeErr(w, r, connect.NewError(connect.CodeInvalidArgument, errors.New("empty event_list")))
			return
		}
		res := InjectResponse{Accepted: s.InjectBatch(batch), Pending: s.PendingCount()}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(res); err != nil {
			log.Warnf("write inject response: %v", err)
		}
	})
	return mux
}
