package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tally/internal/chart"
	"tally/internal/core"
)

const maxChartHeight = 4000

// formatEuros formats cents as a Euro currency string (e.g., "€12,34").
func formatEuros(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "," + fmt.Sprintf("%02d", cents%100)
	if neg {
		return "-€" + s
	}
	return "€" + s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// requireMethod answers 405 and returns false unless r uses method.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method || (method == http.MethodGet && r.Method == http.MethodHead) {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// parseProgress reads the t query parameter. When absent, anim decides the
// progress from the time elapsed since data last changed.
func parseProgress(r *http.Request, anim *chart.Animation, data []chart.Datum, now time.Time) (float64, error) {
	v := strings.TrimSpace(r.URL.Query().Get("t"))
	if v == "" {
		anim.Update(data, now)
		return anim.Progress(now), nil
	}
	t, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid progress %q", v)
	}
	return chart.Clamp(t), nil
}

// parseHeight reads the height query parameter, falling back to def.
func parseHeight(r *http.Request, def float64) (float64, error) {
	v := strings.TrimSpace(r.URL.Query().Get("height"))
	if v == "" {
		return def, nil
	}
	h, err := strconv.ParseFloat(v, 64)
	if err != nil || h <= 0 || h > maxChartHeight {
		return 0, fmt.Errorf("invalid height %q: must be in (0, %d]", v, maxChartHeight)
	}
	return h, nil
}

// parseRefDate reads the date query parameter (YYYY-MM-DD) in loc. Absent
// means now.
func parseRefDate(r *http.Request, loc *time.Location, now time.Time) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get("date"))
	if v == "" {
		return now.In(loc), nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", v)
	}
	return t, nil
}

// parsePeriodRequest reads the requested period from a JSON body
// ({"period": "week"}) or a form value.
func parsePeriodRequest(w http.ResponseWriter, r *http.Request) (core.PeriodKind, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Period string `json:"period"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&body); err != nil {
			return "", fmt.Errorf("invalid JSON body: %w", err)
		}
		return core.ParsePeriodKind(body.Period), nil
	}
	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("invalid form: %w", err)
	}
	return core.ParsePeriodKind(r.Form.Get("period")), nil
}
