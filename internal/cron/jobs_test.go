package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/abcxyz-forecast/internal/abcxyz"
)

type fakeClassifier struct {
	check       *abcxyz.Precheck
	checkErr    error
	classifyErr error
	classified  int
}

func (f *fakeClassifier) Precheck(context.Context) (*abcxyz.Precheck, error) {
	return f.check, f.checkErr
}

func (f *fakeClassifier) ClassifyFromDatabase(context.Context) (*abcxyz.Result, error) {
	f.classified++
	if f.classifyErr != nil {
		return nil, f.classifyErr
	}
	return &abcxyz.Result{ID: "r1"}, nil
}

func TestABCXYZRefreshJob(t *testing.T) {
	ready := &fakeClassifier{check: &abcxyz.Precheck{Ready: true}}
	job, err := NewABCXYZRefreshJob(ABCXYZRefreshJobParams{Logger: testLogger(), Classifier: ready})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != "abcxyz-refresh" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ready.classified != 1 {
		t.Fatalf("expected one classification, got %d", ready.classified)
	}

	notReady := &fakeClassifier{check: &abcxyz.Precheck{Reasons: []string{abcxyz.ReasonNoSales}}}
	job, _ = NewABCXYZRefreshJob(ABCXYZRefreshJobParams{Logger: testLogger(), Classifier: notReady})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if notReady.classified != 0 {
		t.Fatal("expected classification skipped")
	}

	failing := &fakeClassifier{check: &abcxyz.Precheck{Ready: true}, classifyErr: errors.New("boom")}
	job, _ = NewABCXYZRefreshJob(ABCXYZRefreshJobParams{Logger: testLogger(), Classifier: failing})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakePurger struct {
	cutoff time.Time
	err    error
}

func (f *fakePurger) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, f.err
}

func TestForecastRetentionJobCutoff(t *testing.T) {
	purger := &fakePurger{}
	iface, err := NewForecastRetentionJob(ForecastRetentionJobParams{Logger: testLogger(), Runs: purger, Retention: 30})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job := iface.(*forecastRetentionJob)
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC); !purger.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, purger.cutoff)
	}

	purger.err = errors.New("boom")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestForecastRetentionDefaults(t *testing.T) {
	iface, err := NewForecastRetentionJob(ForecastRetentionJobParams{Logger: testLogger(), Runs: &fakePurger{}})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if got := iface.(*forecastRetentionJob).retention; got != forecastRetentionDays {
		t.Fatalf("expected default retention, got %d", got)
	}
	if _, err := NewForecastRetentionJob(ForecastRetentionJobParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected error without purger")
	}
}
