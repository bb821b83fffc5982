package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"chime/internal/models"
	"chime/internal/store"
	"chime/internal/weather"
)

type fakeAlarmStore struct {
	inserted []models.AlarmRecord
	list     []models.AlarmRecord
	listErr  error
}

func (f *fakeAlarmStore) Insert(ctx context.Context, rec *models.AlarmRecord) (int64, error) {
	f.inserted = append(f.inserted, *rec)
	return int64(len(f.inserted)), nil
}

func (f *fakeAlarmStore) ListByDate(ctx context.Context, date string) ([]models.AlarmRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

type fakeTelemetryReader struct {
	sample *models.TelemetrySample
	err    error
}

func (f *fakeTelemetryReader) LatestForClock(ctx context.Context, clockID int64) (*models.TelemetrySample, error) {
	return f.sample, f.err
}

type fakeWeather struct {
	cond *weather.Conditions
	err  error
}

func (f *fakeWeather) Current(ctx context.Context) (*weather.Conditions, error) {
	return f.cond, f.err
}

type fakeKV struct {
	data map[string]string
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.data[key] = value
	return nil
}

func (f *fakeKV) Delete(ctx context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func newTestServer(alarms *fakeAlarmStore, telemetry *fakeTelemetryReader, kv store.KV, ws WeatherSource) *httptest.Server {
	h := NewHandler(alarms, telemetry, kv, ws, 1, zap.NewNop())
	r := NewRouter(zap.NewNop())
	r.RegisterRoutes(h)
	return httptest.NewServer(r)
}

func decodeResult[T any](t *testing.T, resp *http.Response) Result[T] {
	t.Helper()
	defer resp.Body.Close()
	var out Result[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateAlarm(t *testing.T) {
	alarms := &fakeAlarmStore{}
	srv := newTestServer(alarms, &fakeTelemetryReader{}, nil, &fakeWeather{})
	defer srv.Close()

	body := `{"alarm_time": "07:00", "alarm_date": "2024-01-02", "repeat_days": "Mon,Tue"}`
	resp, err := http.Post(srv.URL+"/api/v1/alarms", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeResult[models.AlarmRecord](t, resp)
	assert.Equal(t, ResultSuccess, out.Code)
	assert.Equal(t, "07:00:00", out.Result.Time)
	assert.Equal(t, int64(1), out.Result.ClockID)
	assert.True(t, out.Result.Enabled)

	require.Len(t, alarms.inserted, 1)
	assert.Equal(t, "2024-01-02", alarms.inserted[0].Date)
}

func TestCreateAlarm_SecondsForcedToZero(t *testing.T) {
	alarms := &fakeAlarmStore{}
	srv := newTestServer(alarms, &fakeTelemetryReader{}, nil, &fakeWeather{})
	defer srv.Close()

	body := `{"alarm_time": "07:00:45", "alarm_date": "2024-01-02"}`
	resp, err := http.Post(srv.URL+"/api/v1/alarms", "application/json", strings.NewReader(body))
	require.NoError(t, err)

	out := decodeResult[models.AlarmRecord](t, resp)
	assert.Equal(t, "07:00:00", out.Result.Time)
}

func TestCreateAlarm_Invalid(t *testing.T) {
	srv := newTestServer(&fakeAlarmStore{}, &fakeTelemetryReader{}, nil, &fakeWeather{})
	defer srv.Close()

	cases := []string{
		`{"alarm_time": "25:99", "alarm_date": "2024-01-02"}`,
		`{"alarm_time": "07:00", "alarm_date": "Jan 2"}`,
		`{not json`,
	}
	for _, body := range cases {
		resp, err := http.Post(srv.URL+"/api/v1/alarms", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body: %s", body)
		resp.Body.Close()
	}
}

func TestListAlarms(t *testing.T) {
	alarms := &fakeAlarmStore{list: []models.AlarmRecord{
		{ID: 1, ClockID: 1, Time: "07:00:00", Date: "2024-01-01", Enabled: true},
	}}
	srv := newTestServer(alarms, &fakeTelemetryReader{}, nil, &fakeWeather{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/alarms?date=2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeResult[[]models.AlarmRecord](t, resp)
	require.Len(t, out.Result, 1)
	assert.Equal(t, "07:00:00", out.Result[0].Time)
}

func TestListAlarms_EmptyIsArrayNotNull(t *testing.T) {
	srv := newTestServer(&fakeAlarmStore{}, &fakeTelemetryReader{}, nil, &fakeWeather{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/alarms")
	require.NoError(t, err)

	out := decodeResult[[]models.AlarmRecord](t, resp)
	assert.NotNil(t, out.Result)
	assert.Empty(t, out.Result)
}

func TestLatestTelemetry_CacheHit(t *testing.T) {
	temp := 21.5
	hum := 48.0
	cached, _ := json.Marshal(models.TelemetrySample{
		ClockID: 1, Temperature: &temp, Humidity: &hum, ReceivedAt: time.Now(),
	})
	kv := &fakeKV{data: map[string]string{
		store.LatestTelemetryKey(1): string(cached),
	}}

	// The store would fail; the cache must answer first.
	telemetry := &fakeTelemetryReader{err: errors.New("db down")}
	srv := newTestServer(&fakeAlarmStore{}, telemetry, kv, &fakeWeather{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/telemetry/latest")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeResult[models.TelemetrySample](t, resp)
	assert.Equal(t, 21.5, *out.Result.Temperature)
}

func TestLatestTelemetry_StoreFallback(t *testing.T) {
	temp := 20.0
	hum := 55.0
	telemetry := &fakeTelemetryReader{sample: &models.TelemetrySample{
		ClockID: 1, Temperature: &temp, Humidity: &hum, ReceivedAt: time.Now(),
	}}
	srv := newTestServer(&fakeAlarmStore{}, telemetry, &fakeKV{data: map[string]string{}}, &fakeWeather{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/telemetry/latest?clock_id=1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeResult[models.TelemetrySample](t, resp)
	assert.Equal(t, 55.0, *out.Result.Humidity)
}

func TestLatestTelemetry_NoneFound(t *testing.T) {
	srv := newTestServer(&fakeAlarmStore{}, &fakeTelemetryReader{}, nil, &fakeWeather{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/telemetry/latest")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	out := decodeResult[any](t, resp)
	assert.Equal(t, ResultError, out.Code)
}

func TestWeather(t *testing.T) {
	ws := &fakeWeather{cond: &weather.Conditions{Location: "Lewisburg", TempC: 3.0}}
	srv := newTestServer(&fakeAlarmStore{}, &fakeTelemetryReader{}, nil, ws)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/weather")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeResult[weather.Conditions](t, resp)
	assert.Equal(t, "Lewisburg", out.Result.Location)
}

func TestWeather_UpstreamFailure(t *testing.T) {
	ws := &fakeWeather{err: errors.New("api down")}
	srv := newTestServer(&fakeAlarmStore{}, &fakeTelemetryReader{}, nil, ws)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/weather")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()
}

func TestExportAlarms(t *testing.T) {
	alarms := &fakeAlarmStore{list: []models.AlarmRecord{
		{ID: 1, ClockID: 1, Time: "07:00:00", Date: "2024-01-01", RepeatDays: "Mon", Enabled: true},
		{ID: 2, ClockID: 1, Time: "08:30:00", Date: "2024-01-01", Enabled: false},
	}}
	srv := newTestServer(alarms, &fakeTelemetryReader{}, nil, &fakeWeather{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/alarms/export?date=2024-01-01")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "alarms-2024-01-01.xlsx")

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Alarms")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, AlarmExportHeader, rows[0])
	assert.Equal(t, "07:00:00", rows[1][2])
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeAlarmStore{}, &fakeTelemetryReader{}, nil, &fakeWeather{})
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/alarms", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}
