package stats

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestUpsertCounter_Record(t *testing.T) {
	c := NewUpsertCounter()

	c.Record("review", true)
	c.Record("review", false)
	c.Record("review", false)
	c.Record("location", true)

	if got := testutil.ToFloat64(c.total.WithLabelValues("review", OutcomeInserted)); got != 1 {
		t.Errorf("review inserted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.total.WithLabelValues("review", OutcomeUpdated)); got != 2 {
		t.Errorf("review updated = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(c.Collector()); got != 3 {
		t.Errorf("series = %d, want 3", got)
	}
}

func TestUpsertCounter_Concurrent(t *testing.T) {
	c := NewUpsertCounter()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Record("review", i%2 == 0)
		}(i)
	}
	wg.Wait()

	ins := testutil.ToFloat64(c.total.WithLabelValues("review", OutcomeInserted))
	upd := testutil.ToFloat64(c.total.WithLabelValues("review", OutcomeUpdated))
	if ins+upd != 50 {
		t.Errorf("total = %v, want 50", ins+upd)
	}
}

func TestUpsertCounter_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewUpsertCounter()
	if err := c.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := c.Register(reg); err == nil {
		t.Error("second Register() should fail")
	}
}

func TestUpsertCounter_LogRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := NewUpsertCounter()
	c.LogRecord(logger, "review", "rev-1", false)

	if !strings.Contains(buf.String(), "id=rev-1") {
		t.Errorf("log output missing id: %s", buf.String())
	}
	if got := testutil.ToFloat64(c.total.WithLabelValues("review", OutcomeUpdated)); got != 1 {
		t.Errorf("updated = %v, want 1", got)
	}
}
