package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"chime/internal/models"
	"chime/internal/store"
	"chime/internal/weather"
)

// AlarmStore is the write-side alarm surface the dashboard needs. The
// scheduler owns retirement; this API only creates and lists.
type AlarmStore interface {
	Insert(ctx context.Context, rec *models.AlarmRecord) (int64, error)
	ListByDate(ctx context.Context, date string) ([]models.AlarmRecord, error)
}

// TelemetryReader is the store fallback behind the latest-sample
// cache.
type TelemetryReader interface {
	LatestForClock(ctx context.Context, clockID int64) (*models.TelemetrySample, error)
}

// WeatherSource provides current conditions.
type WeatherSource interface {
	Current(ctx context.Context) (*weather.Conditions, error)
}

// Handler serves the dashboard API.
type Handler struct {
	alarms         AlarmStore
	telemetry      TelemetryReader
	kv             store.KV // nil disables the cache read path
	weatherSource  WeatherSource
	defaultClockID int64
	logger         *zap.Logger
	now            func() time.Time
}

func NewHandler(alarms AlarmStore, telemetry TelemetryReader, kv store.KV, weatherSource WeatherSource, defaultClockID int64, logger *zap.Logger) *Handler {
	return &Handler{
		alarms:         alarms,
		telemetry:      telemetry,
		kv:             kv,
		weatherSource:  weatherSource,
		defaultClockID: defaultClockID,
		logger:         logger,
		now:            time.Now,
	}
}

type createAlarmRequest struct {
	ClockID    int64  `json:"clock_id"`
	AlarmTime  string `json:"alarm_time"`
	AlarmDate  string `json:"alarm_date"`
	RepeatDays string `json:"repeat_days"`
}

// CreateAlarm inserts a new enabled alarm. Alarm granularity is one
// minute; seconds are forced to :00 so the scheduler's exact-minute
// match can ever succeed.
func (h *Handler) CreateAlarm(w http.ResponseWriter, r *http.Request) {
	var req createAlarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	normalized, err := normalizeAlarmTime(req.AlarmTime)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	if _, err := time.Parse("2006-01-02", req.AlarmDate); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("alarm_date must be YYYY-MM-DD"))
		return
	}

	clockID := req.ClockID
	if clockID == 0 {
		clockID = h.defaultClockID
	}

	rec := &models.AlarmRecord{
		ClockID:    clockID,
		Time:       normalized,
		Date:       req.AlarmDate,
		RepeatDays: req.RepeatDays,
		Enabled:    true,
	}

	id, err := h.alarms.Insert(r.Context(), rec)
	if err != nil {
		h.logger.Error("Failed to insert alarm", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to set alarm"))
		return
	}
	rec.ID = id

	h.logger.Info("Alarm set",
		zap.Int64("alarm_id", id),
		zap.String("alarm_time", rec.Time),
		zap.String("alarm_date", rec.Date),
	)

	writeJSON(w, http.StatusOK, Ok(rec))
}

// ListAlarms returns the alarms for a date (default today).
func (h *Handler) ListAlarms(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("date must be YYYY-MM-DD"))
		return
	}

	alarms, err := h.alarms.ListByDate(r.Context(), date)
	if err != nil {
		h.logger.Error("Failed to list alarms", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to fetch alarms"))
		return
	}

	if alarms == nil {
		alarms = []models.AlarmRecord{}
	}

	writeJSON(w, http.StatusOK, Ok(alarms))
}

// ExportAlarms streams the date's alarms as an xlsx workbook.
func (h *Handler) ExportAlarms(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("date must be YYYY-MM-DD"))
		return
	}

	alarms, err := h.alarms.ListByDate(r.Context(), date)
	if err != nil {
		h.logger.Error("Failed to list alarms for export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to fetch alarms"))
		return
	}

	data, err := GenerateAlarmExport(alarms)
	if err != nil {
		h.logger.Error("Failed to generate alarm export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="alarms-%s.xlsx"`, date))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// LatestTelemetry returns the newest sample for a clock: cache first,
// store fallback.
func (h *Handler) LatestTelemetry(w http.ResponseWriter, r *http.Request) {
	clockID := h.defaultClockID
	if raw := r.URL.Query().Get("clock_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("clock_id must be an integer"))
			return
		}
		clockID = parsed
	}

	if h.kv != nil {
		if cached, err := h.kv.Get(r.Context(), store.LatestTelemetryKey(clockID)); err == nil {
			var s models.TelemetrySample
			if err := json.Unmarshal([]byte(cached), &s); err == nil {
				writeJSON(w, http.StatusOK, Ok(&s))
				return
			}
		}
	}

	s, err := h.telemetry.LatestForClock(r.Context(), clockID)
	if err != nil {
		h.logger.Error("Failed to read latest telemetry", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to fetch telemetry"))
		return
	}
	if s == nil {
		writeJSON(w, http.StatusNotFound, Fail("no telemetry for clock"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(s))
}

// Weather returns current conditions for the configured location.
func (h *Handler) Weather(w http.ResponseWriter, r *http.Request) {
	cond, err := h.weatherSource.Current(r.Context())
	if err != nil {
		h.logger.Error("Failed to fetch weather", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, Fail("failed to fetch weather data"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(cond))
}

// normalizeAlarmTime accepts "HH:MM" or "HH:MM:SS" and returns
// "HH:MM:00".
func normalizeAlarmTime(value string) (string, error) {
	if ts, err := time.Parse("15:04:05", value); err == nil {
		return ts.Format("15:04") + ":00", nil
	}
	if ts, err := time.Parse("15:04", value); err == nil {
		return ts.Format("15:04") + ":00", nil
	}
	return "", fmt.Errorf("alarm_time must be HH:MM or HH:MM:SS")
}
