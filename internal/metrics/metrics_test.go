package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.EvaluationSaved("Good to say")
	m.EvaluationSaved("Good to say")
	m.DeleteRequested("protected")
	m.PersistFailed("think-evaluations")

	if got := testutil.ToFloat64(m.saved.WithLabelValues("Good to say")); got != 2 {
		t.Errorf("saved{Good to say} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.deletions.WithLabelValues("protected")); got != 1 {
		t.Errorf("deletions{protected} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.persistErrors.WithLabelValues("think-evaluations")); got != 1 {
		t.Errorf("persist errors = %v, want 1", got)
	}
}

func TestGauges(t *testing.T) {
	m := New()
	m.HistorySize(42)
	m.Streak(7)
	m.Streak(1)

	if got := testutil.ToFloat64(m.historySize); got != 42 {
		t.Errorf("history size = %v, want 42", got)
	}
	if got := testutil.ToFloat64(m.streakDays); got != 1 {
		t.Errorf("streak = %v, want 1", got)
	}
}

func TestHandler_ServesRegistry(t *testing.T) {
	m := New()
	m.RetentionRefreshed()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "think_retention_refreshes_total 1") {
		t.Errorf("metrics output missing refresh counter:\n%s", body)
	}
}
