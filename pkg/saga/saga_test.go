package saga

import (
	"context"
	"errors"
	"reflect"
	"testing"

	metricsmemory "money-ledger/pkg/metrics/memory"
)

func recorder(log *[]string, name string, err error) func(context.Context) error {
	return func(context.Context) error {
		*log = append(*log, name)
		return err
	}
}

func TestSaga_Success(t *testing.T) {
	var log []string
	s := New("test", nil, nil).
		Add("a", recorder(&log, "do a", nil), recorder(&log, "undo a", nil)).
		Add("b", recorder(&log, "do b", nil), recorder(&log, "undo b", nil))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if want := []string{"do a", "do b"}; !reflect.DeepEqual(log, want) {
		t.Errorf("Expected %v, got %v", want, log)
	}
}

func TestSaga_CompensatesInReverse(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	collector := metricsmemory.NewMemoryCollector()

	s := New("create", nil, collector).
		Add("a", recorder(&log, "do a", nil), recorder(&log, "undo a", nil)).
		Add("b", recorder(&log, "do b", nil), nil).
		Add("c", recorder(&log, "do c", nil), recorder(&log, "undo c", nil)).
		Add("d", recorder(&log, "do d", boom), recorder(&log, "undo d", nil))

	err := s.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}
	if errors.Is(err, ErrCompensationFailed) {
		t.Error("Compensation should have succeeded")
	}

	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != "d" || stepErr.Saga != "create" {
		t.Errorf("Expected StepError for step d, got %#v", err)
	}

	want := []string{"do a", "do b", "do c", "do d", "undo c", "undo a"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("Expected %v, got %v", want, log)
	}
	if got := collector.Compensations("create"); got.Succeeded != 1 || got.Failed != 0 {
		t.Errorf("Expected 1 successful compensation, got %+v", got)
	}
}

func TestSaga_FirstStepFailureSkipsCompensation(t *testing.T) {
	collector := metricsmemory.NewMemoryCollector()
	boom := errors.New("boom")

	err := New("create", nil, collector).
		Add("a", func(context.Context) error { return boom }, func(context.Context) error {
			t.Error("Undo of the failed step must not run")
			return nil
		}).
		Run(context.Background())

	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}
	if got := collector.Compensations("create"); got.Succeeded+got.Failed != 0 {
		t.Errorf("Expected no compensation run, got %+v", got)
	}
}

func TestSaga_CompensationFailure(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	undoErr := errors.New("store down")
	collector := metricsmemory.NewMemoryCollector()

	err := New("delete", nil, collector).
		Add("a", recorder(&log, "do a", nil), recorder(&log, "undo a", nil)).
		Add("b", recorder(&log, "do b", nil), recorder(&log, "undo b", undoErr)).
		Add("c", recorder(&log, "do c", boom), nil).
		Run(context.Background())

	if !errors.Is(err, boom) || !errors.Is(err, ErrCompensationFailed) || !errors.Is(err, undoErr) {
		t.Fatalf("Expected chain with boom, ErrCompensationFailed and undo error, got %v", err)
	}
	// remaining undos still run after one fails
	want := []string{"do a", "do b", "do c", "undo b", "undo a"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("Expected %v, got %v", want, log)
	}
	if got := collector.Compensations("delete"); got.Failed != 1 {
		t.Errorf("Expected 1 failed compensation, got %+v", got)
	}
}

func TestSaga_UndoIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var undoCtxErr error

	err := New("update", nil, nil).
		Add("a", func(context.Context) error { return nil }, func(ctx context.Context) error {
			undoCtxErr = ctx.Err()
			return nil
		}).
		Add("b", func(context.Context) error {
			cancel()
			return context.Canceled
		}, nil).
		Run(ctx)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if undoCtxErr != nil {
		t.Errorf("Expected undo to run with a live context, got %v", undoCtxErr)
	}
}
