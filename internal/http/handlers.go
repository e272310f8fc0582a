package http

import (
	"errors"
	"net/http"
	"time"

	"tally/internal/chart"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/period"
	"tally/internal/session"
	"tally/internal/stats"
)

type windowView struct {
	Kind         string    `json:"kind"`
	Label        string    `json:"label"`
	Year         int       `json:"year"`
	Ordinal      int       `json:"ordinal"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	BucketLabels []string  `json:"bucket_labels"`
}

type categoryView struct {
	CategoryID  int64  `json:"category_id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	Percent     int    `json:"percent"`
}

type totalsView struct {
	ExpenseCents       int64  `json:"expense_cents"`
	IncomeCents        int64  `json:"income_cents"`
	BalanceCents       int64  `json:"balance_cents"`
	UncategorizedCents int64  `json:"uncategorized_cents"`
	Expense            string `json:"expense"`
	Income             string `json:"income"`
	Balance            string `json:"balance"`
	Count              int    `json:"count"`
}

type statsResponse struct {
	Period      string         `json:"period"`
	Status      string         `json:"status"`
	Loading     bool           `json:"loading"`
	Error       string         `json:"error,omitempty"`
	Seq         uint64         `json:"seq"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Window      *windowView    `json:"window,omitempty"`
	Totals      *totalsView    `json:"totals,omitempty"`
	Categories  []categoryView `json:"categories"`
	Trend       []float64      `json:"trend"`
	Fingerprint string         `json:"fingerprint,omitempty"`
}

func newWindowView(w core.Window) *windowView {
	if w.IsZero() {
		return nil
	}
	return &windowView{
		Kind:         string(w.Kind),
		Label:        w.Label(),
		Year:         w.Year(),
		Ordinal:      w.Ordinal(),
		Start:        w.Start,
		End:          w.End,
		BucketLabels: w.BucketLabels(),
	}
}

func newStatsResponse(st session.State) statsResponse {
	resp := statsResponse{
		Period:     string(st.Period),
		Status:     st.Status.String(),
		Loading:    st.Loading,
		Error:      st.Err,
		Seq:        st.Seq,
		UpdatedAt:  st.UpdatedAt,
		Window:     newWindowView(st.Window),
		Categories: []categoryView{},
		Trend:      []float64{},
	}
	snap, ok := st.Snapshot()
	if !ok {
		return resp
	}

	agg := snap.Aggregate
	resp.Totals = &totalsView{
		ExpenseCents:       agg.TotalExpense.Cents,
		IncomeCents:        agg.TotalIncome.Cents,
		BalanceCents:       agg.Balance.Cents,
		UncategorizedCents: agg.Uncategorized.Cents,
		Expense:            formatEuros(agg.TotalExpense.Cents),
		Income:             formatEuros(agg.TotalIncome.Cents),
		Balance:            formatEuros(agg.Balance.Cents),
		Count:              agg.Count,
	}

	sorted := stats.SortedBreakdown(agg.Breakdown)
	slices := chart.Ring(chart.RingData(agg), 1)
	for i, c := range sorted {
		resp.Categories = append(resp.Categories, categoryView{
			CategoryID:  c.CategoryID,
			Name:        c.Name,
			Color:       c.Color,
			AmountCents: c.Amount.Cents,
			Amount:      formatEuros(c.Amount.Cents),
			Percent:     slices[i].Percent,
		})
	}
	resp.Trend = append(resp.Trend, snap.Trend...)
	resp.Fingerprint = snap.Fingerprint()
	return resp
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady is ready once the session has produced a result, successful or not.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	st := s.state.State()
	if st.Status == session.StatusIdle || (st.Status == session.StatusLoading && st.Aggregate == nil) {
		writeError(w, http.StatusServiceUnavailable, "statistics not computed yet")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, newStatsResponse(s.state.State()))
}

// POST /api/period
func (s *Server) handleSetPeriod(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	kind, err := parsePeriodRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.state.SetPeriod(kind); err != nil {
		switch {
		case errors.Is(err, period.ErrInvalidPeriod):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, session.ErrClosed):
			writeError(w, http.StatusServiceUnavailable, "session closed")
		default:
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to set period",
				log.FieldError, err,
				log.FieldPeriod, string(kind))
			writeError(w, http.StatusInternalServerError, "failed to set period")
		}
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Period selected", log.FieldPeriod, string(kind))
	writeJSON(w, http.StatusAccepted, newStatsResponse(s.state.State()))
}

type ringResponse struct {
	Label    string        `json:"label"`
	Status   string        `json:"status"`
	Progress float64       `json:"progress"`
	StartDeg float64       `json:"start_deg"`
	Slices   []chart.Slice `json:"slices"`
}

// GET /api/charts/ring?t=
func (s *Server) handleRing(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	st := s.state.State()
	var data []chart.Datum
	if st.Aggregate != nil {
		data = chart.RingData(*st.Aggregate)
	}

	t, err := parseProgress(r, s.ringAnim, data, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ringResponse{
		Label:    st.Window.Label(),
		Status:   st.Status.String(),
		Progress: t,
		StartDeg: chart.RingStartDeg,
		Slices:   chart.Ring(data, t),
	})
}

type barsResponse struct {
	Label    string  `json:"label"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	chart.BarChart
}

// GET /api/charts/bars?t=&height=
func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	layout := chart.DefaultBarLayout
	h, err := parseHeight(r, layout.Height)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	layout.Height = h

	st := s.state.State()
	data := chart.TrendData(st.Window, st.Trend)

	t, err := parseProgress(r, s.barsAnim, data, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, barsResponse{
		Label:    st.Window.Label(),
		Status:   st.Status.String(),
		Progress: t,
		BarChart: chart.Bars(data, t, layout),
	})
}

type compareResponse struct {
	Current            *windowView    `json:"current"`
	Previous           *windowView    `json:"previous"`
	ExpenseCents       int64          `json:"expense_cents"`
	PrevExpenseCents   int64          `json:"prev_expense_cents"`
	IncomeCents        int64          `json:"income_cents"`
	PrevIncomeCents    int64          `json:"prev_income_cents"`
	Expense            string         `json:"expense"`
	PrevExpense        string         `json:"prev_expense"`
	ExpenseDeltaPct    *float64       `json:"expense_delta_percent"`
	Categories         []categoryView `json:"categories"`
	PreviousCategories []categoryView `json:"previous_categories"`
}

func categoryViews(in []core.CategoryAmount) []categoryView {
	out := make([]categoryView, 0, len(in))
	for _, c := range in {
		out = append(out, categoryView{
			CategoryID:  c.CategoryID,
			Name:        c.Name,
			Color:       c.Color,
			AmountCents: c.Amount.Cents,
			Amount:      formatEuros(c.Amount.Cents),
		})
	}
	return out
}

// GET /api/compare?period=&date=
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	kind := s.state.State().Period
	if v := r.URL.Query().Get("period"); v != "" {
		kind = core.ParsePeriodKind(v)
	}
	if !kind.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown period "+string(kind))
		return
	}
	ref, err := parseRefDate(r, s.loc, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cmp, err := s.stats.Compare(r.Context(), kind, ref)
	if err != nil {
		if errors.Is(err, period.ErrInvalidPeriod) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Comparison failed",
			log.FieldError, err,
			log.FieldPeriod, string(kind))
		writeError(w, http.StatusInternalServerError, "failed to compute comparison")
		return
	}

	resp := compareResponse{
		Current:            newWindowView(cmp.Current),
		Previous:           newWindowView(cmp.Previous),
		ExpenseCents:       cmp.Expense.Cents,
		PrevExpenseCents:   cmp.PrevExpense.Cents,
		IncomeCents:        cmp.Income.Cents,
		PrevIncomeCents:    cmp.PrevIncome.Cents,
		Expense:            formatEuros(cmp.Expense.Cents),
		PrevExpense:        formatEuros(cmp.PrevExpense.Cents),
		Categories:         categoryViews(cmp.ByCategory),
		PreviousCategories: categoryViews(cmp.PrevCategory),
	}
	if pct, ok := cmp.ExpenseDeltaPercent(); ok {
		resp.ExpenseDeltaPct = &pct
	}
	writeJSON(w, http.StatusOK, resp)
}
