package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/pir-presets/internal/motion"
	"github.com/sweeney/pir-presets/internal/status"
)

type fakeSwitch struct {
	on    bool
	calls []bool
}

func (f *fakeSwitch) SetEnabled(on bool) {
	f.on = on
	f.calls = append(f.calls, on)
}

func (f *fakeSwitch) Enabled() bool { return f.on }

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *fakeSwitch) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		TickMs:           1000,
		HoldMs:           300000,
		HoldTicks:        300,
		PresetOnMotion:   1,
		PresetOnNoMotion: 2,
		HeartbeatMs:      900000,
		Broker:           "tcp://192.168.1.200:1883",
		WLED:             "http://192.168.1.50",
		HTTPAddr:         ":80",
	}
	tr := status.NewTracker(start, cfg)
	sw := &fakeSwitch{on: true}
	srv := New(":0", tr, sw)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr, sw
}

func getStatus(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url + "/index.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var sj status.StatusJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sj))
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(motion.State{Enabled: true, Holding: true, Occupied: true, ActivePreset: 1, Counts: motion.Counts{Motion: 5, NoMotion: 2}}, true)
	tr.SetMQTTConnected(true)

	sj := getStatus(t, ts.URL)

	assert.Equal(t, status.OccupancyOccupied, sj.Status.Occupancy)
	assert.True(t, sj.Status.Ready)
	assert.True(t, sj.Status.MQTT.Connected)
	assert.Equal(t, "tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	assert.Equal(t, 5, sj.Status.Counts.Motion)
	assert.Equal(t, 2, sj.Status.Counts.NoMotion)
	assert.Equal(t, 1, sj.Status.Motion.ActivePreset)
	assert.Equal(t, uint32(300), sj.Status.Config.HoldTicks)
}

func TestJSONUnknownBeforeFirstDecision(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(motion.State{Enabled: true}, false)

	sj := getStatus(t, ts.URL)
	assert.Equal(t, status.OccupancyUnknown, sj.Status.Occupancy)
	assert.False(t, sj.Status.Ready)
}

func TestHTMLEndpoints(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(motion.State{
		Enabled:        true,
		Holding:        true,
		Occupied:       true,
		HoldElapsed:    12,
		ActivePreset:   1,
		LastTransition: &motion.Transition{Timestamp: time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC), Kind: motion.KindMotion, Preset: 1},
	}, true)
	tr.SetNetwork(&status.NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"})

	for _, path := range []string{"/", "/index.html"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err, path)
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		body := string(data)

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"), path)
		assert.Contains(t, body, "OCCUPIED", path)
		assert.Contains(t, body, "12 / 300 ticks", path)
		assert.Contains(t, body, "192.168.1.42", path)
		assert.Contains(t, body, "MOTION at 2026-01-01T00:05:00Z", path)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetState(t *testing.T) {
	ts, _, sw := newTestServer(t)
	sw.on = false

	resp, err := http.Get(ts.URL + "/json/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, map[string]interface{}{"motionSensingState": false}, got)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPostStateToggles(t *testing.T) {
	ts, tr, sw := newTestServer(t)
	tr.Update(motion.State{Enabled: true}, true)

	resp, err := http.Post(ts.URL+"/json/state", "application/json", strings.NewReader(`{"motionSensingState":false}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var got map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, map[string]interface{}{"success": true}, got)
	assert.Equal(t, []bool{false}, sw.calls)
	assert.False(t, tr.Snapshot().Motion.Enabled)
}

func TestPostStateVerbose(t *testing.T) {
	ts, _, sw := newTestServer(t)
	sw.on = false

	resp, err := http.Post(ts.URL+"/json/state", "application/json", strings.NewReader(`{"motionSensingState":true,"v":true}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var got map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, map[string]interface{}{"motionSensingState": true}, got)
}

func TestPostStateWithoutKeyLeavesSwitch(t *testing.T) {
	ts, _, sw := newTestServer(t)

	resp, err := http.Post(ts.URL+"/json/state", "application/json", strings.NewReader(`{"bri":128}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, sw.calls)
	assert.True(t, sw.on)
}

func TestPostStateMalformed(t *testing.T) {
	ts, _, sw := newTestServer(t)

	resp, err := http.Post(ts.URL+"/json/state", "application/json", strings.NewReader(`{not json`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var got map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, float64(9), got["error"])
	assert.Empty(t, sw.calls)
}

func TestStateMethodNotAllowed(t *testing.T) {
	ts, _, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/json/state", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	ts, _, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/json/state", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Methods"))
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr, _ := newTestServer(t)

	assert.False(t, getStatus(t, ts.URL).Status.Ready)

	tr.Update(motion.State{Enabled: true, ActivePreset: 2, Counts: motion.Counts{NoMotion: 1}}, true)
	tr.SetMQTTConnected(true)

	sj := getStatus(t, ts.URL)
	assert.True(t, sj.Status.Ready)
	assert.Equal(t, status.OccupancyVacant, sj.Status.Occupancy)
	assert.True(t, sj.Status.MQTT.Connected)
}
