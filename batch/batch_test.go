package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/sheetbridge/apiclient"
)

type fakeSpreadsheetsAPI struct {
	apiclient.SpreadsheetsAPI
	calls      int32
	lastReqLen int
	failWith   error
}

func (f *fakeSpreadsheetsAPI) BatchUpdate(ctx context.Context, req apiclient.BatchUpdateRequest) (*apiclient.UpdateResult, error) {
	atomic.AddInt32(&f.calls, 1)
	f.lastReqLen = len(req.Requests)
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &apiclient.UpdateResult{UpdatedCells: len(req.Requests) * 4}, nil
}

func TestBatcher_GroupsConcurrentWritesIntoOneCall(t *testing.T) {
	api := &fakeSpreadsheetsAPI{}
	b := New(Config{Window: 30 * time.Millisecond, MaxSize: 25}, api, nil)

	var wg sync.WaitGroup
	results := make([]*apiclient.UpdateResult, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := b.Queue(context.Background(), "sheet1", apiclient.BatchRequestItem{
				UpdateCells: map[string]any{"row": i},
			})
			if err != nil {
				t.Errorf("Queue() error = %v", err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&api.calls); got != 1 {
		t.Errorf("BatchUpdate called %d times, want 1", got)
	}
	for i, r := range results {
		if r == nil {
			t.Errorf("result %d is nil", i)
		}
	}
}

func TestBatcher_FlushesEarlyAtMaxSize(t *testing.T) {
	api := &fakeSpreadsheetsAPI{}
	b := New(Config{Window: time.Hour, MaxSize: 3}, api, nil)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Queue(context.Background(), "sheet1", apiclient.BatchRequestItem{})
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("batch did not flush early at MaxSize despite a 1-hour window")
	}
}

func TestBatcher_ErrorPropagatesToEveryCaller(t *testing.T) {
	api := &fakeSpreadsheetsAPI{failWith: errors.New("upstream rejected batch")}
	b := New(Config{Window: 20 * time.Millisecond, MaxSize: 25}, api, nil)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := b.Queue(context.Background(), "sheet1", apiclient.BatchRequestItem{})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err == nil {
			t.Errorf("caller %d expected an error", i)
		}
	}
}
