package remotejob

import (
	"context"
	"errors"
	"testing"
	"time"

	"voicebatch/internal/services"
	"voicebatch/internal/services/minimax"
)

type scriptedStatus struct {
	responses []minimax.QueryResponse
	errs      []error
	calls     int
}

func (s *scriptedStatus) QueryJob(_ context.Context, _ minimax.ID) (minimax.QueryResponse, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return minimax.QueryResponse{}, s.errs[i]
	}
	if i >= len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	return s.responses[i], nil
}

type sleepRecorder struct {
	calls int
	total time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.calls++
	r.total += d
	return nil
}

func processing() minimax.QueryResponse { return minimax.QueryResponse{Status: "Processing"} }

func TestPollTerminalStates(t *testing.T) {
	tests := []struct {
		name    string
		final   minimax.QueryResponse
		wantErr error
		wantID  minimax.ID
	}{
		{"success", minimax.QueryResponse{Status: "Success", FileID: "9"}, nil, "9"},
		{"success lowercase", minimax.QueryResponse{Status: "success", FileID: "9"}, nil, "9"},
		{"success without file", minimax.QueryResponse{Status: "Success"}, services.ErrPollTimeout, ""},
		{"failed", minimax.QueryResponse{Status: "Failed"}, services.ErrJobFailed, ""},
		{"expired", minimax.QueryResponse{Status: "Expired"}, services.ErrJobExpired, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &scriptedStatus{responses: []minimax.QueryResponse{processing(), processing(), tt.final}}
			sleeper := &sleepRecorder{}
			poller := NewPoller(api, nil, WithSleeper(sleeper.sleep))
			ref, err := poller.Poll(context.Background(), JobHandle{TaskID: "1"})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("Poll returned error: %v", err)
			}
			if ref.FileID != tt.wantID {
				t.Fatalf("expected file id %q, got %q", tt.wantID, ref.FileID)
			}
			if api.calls != 3 {
				t.Fatalf("expected 3 queries, got %d", api.calls)
			}
			if sleeper.calls != 2 || sleeper.total != 2*DefaultPollInterval {
				t.Fatalf("expected 2 sleeps of %s, got %d totalling %s", DefaultPollInterval, sleeper.calls, sleeper.total)
			}
		})
	}
}

func TestPollTimesOutAfterBudget(t *testing.T) {
	api := &scriptedStatus{responses: []minimax.QueryResponse{processing()}}
	sleeper := &sleepRecorder{}
	poller := NewPoller(api, nil, WithSleeper(sleeper.sleep))
	_, err := poller.Poll(context.Background(), JobHandle{TaskID: "1"})
	if !errors.Is(err, services.ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if api.calls != DefaultPollAttempts {
		t.Fatalf("expected %d queries, got %d", DefaultPollAttempts, api.calls)
	}
	if sleeper.calls != DefaultPollAttempts-1 {
		t.Fatalf("expected %d sleeps, got %d", DefaultPollAttempts-1, sleeper.calls)
	}
}

func TestPollQueryErrorsConsumeAttempts(t *testing.T) {
	boom := errors.New("dial tcp: timeout")
	api := &scriptedStatus{
		errs:      []error{boom, boom},
		responses: []minimax.QueryResponse{{}, {}, {Status: "Success", FileID: "7"}},
	}
	sleeper := &sleepRecorder{}
	ref, err := NewPoller(api, nil, WithSleeper(sleeper.sleep), WithMaxAttempts(3)).Poll(context.Background(), JobHandle{TaskID: "1"})
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if ref.FileID != "7" || sleeper.calls != 2 {
		t.Fatalf("unexpected result: ref=%+v sleeps=%d", ref, sleeper.calls)
	}

	api = &scriptedStatus{errs: []error{boom, boom, boom}, responses: []minimax.QueryResponse{{}}}
	_, err = NewPoller(api, nil, WithSleeper(sleeper.sleep), WithMaxAttempts(3)).Poll(context.Background(), JobHandle{TaskID: "1"})
	if !errors.Is(err, services.ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout after query errors, got %v", err)
	}
}

func TestPollHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &scriptedStatus{responses: []minimax.QueryResponse{processing()}}
	sleep := func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	_, err := NewPoller(api, nil, WithSleeper(sleep)).Poll(ctx, JobHandle{TaskID: "1"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if services.SkipReason(err) != "interrupted" {
		t.Fatalf("unexpected skip reason %q", services.SkipReason(err))
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("sleepContext returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
