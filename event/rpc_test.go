package event_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/event"
)

func TestInjectHandler(t *testing.T) {
	w := newWorld(t)
	srv := httptest.NewServer(w.Events().Handler())
	defer srv.Close()
	url := srv.URL + "/" + event.ServiceName + "/InjectTrafficEvent"

	res, err := http.Post(url, "application/json", strings.NewReader(`{
		"control_enable": true,
		"event_list": [{"event_type": "sim_road_speed_limit", "event_id": 1, "event_influence_roads": [1],
			"event_start_time_stamp_s": 3, "event_duration_s": 5, "event_influence_roads_speed_ms": 4}]
	}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var body event.InjectResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.True(t, body.Accepted)
	assert.Equal(t, 1, body.Pending)

	bad, err := http.Post(url, "application/json", strings.NewReader(`{"event_list": []}`))
	require.NoError(t, err)
	bad.Body.Close()
	assert.NotEqual(t, http.StatusOK, bad.StatusCode)

	get, err := http.Get(url)
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)
}
