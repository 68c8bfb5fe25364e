package ratings

import (
	"context"
	"errors"
	"flavorai-client/core"
	"flavorai-client/gateway"
	"flavorai-client/mockapi"
	"flavorai-client/stores/memory"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	api      *mockapi.Server
	gw       *gateway.Gateway
	userID   string
	recipeID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	api := mockapi.NewServer("test-secret", mockapi.WithBcryptCost(bcrypt.MinCost))
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	userID := api.AddUser("rater@example.com", "pw", "")
	token, err := api.TokenFor(userID)
	if err != nil {
		t.Fatal(err)
	}
	store := memory.NewStore()
	store.Set(context.Background(), token)

	return &fixture{
		api:      api,
		gw:       gateway.New(srv.URL, store),
		userID:   userID,
		recipeID: api.AddRecipe(userID, "Soup", "water", "boil"),
	}
}

func (f *fixture) summaryPath() string {
	return "/ratings/recipe/" + f.recipeID
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRate_RefetchesAuthoritativeSummary(t *testing.T) {
	f := newFixture(t)
	f.api.SetRatings(f.recipeID, map[string]int{"a": 5, "b": 5, "c": 4, "d": 3})
	w := NewWidget(f.gw, f.recipeID)
	f.api.ResetCalls()

	if err := w.Rate(context.Background(), 4); err != nil {
		t.Fatal(err)
	}

	if got := w.AverageLabel(); got != "4.2 / 5" {
		t.Errorf("AverageLabel() = %q", got)
	}
	if got := w.CountLabel(); got != "5" {
		t.Errorf("CountLabel() = %q", got)
	}
	if s := w.Summary(); s.UserRating == nil || *s.UserRating != 4 {
		t.Errorf("user rating: %+v", s.UserRating)
	}
	if w.State() != Idle || w.Message() != "" {
		t.Errorf("state %v message %q", w.State(), w.Message())
	}

	calls := f.api.Calls()
	if len(calls) != 2 ||
		calls[0].Method != http.MethodPost || calls[0].Path != "/ratings" ||
		calls[1].Method != http.MethodGet || calls[1].Path != f.summaryPath() {
		t.Errorf("expected POST then GET, got %+v", calls)
	}
}

func TestRate_FailureKeepsSummary(t *testing.T) {
	tests := []struct {
		name  string
		fault func(f *fixture) mockapi.Fault
		calls int
	}{
		{
			name: "submission rejected",
			fault: func(f *fixture) mockapi.Fault {
				return mockapi.Fault{Method: http.MethodPost, Path: "/ratings", Status: 500, Message: "rating service down"}
			},
			calls: 1,
		},
		{
			name: "refetch failed",
			fault: func(f *fixture) mockapi.Fault {
				return mockapi.Fault{Method: http.MethodGet, Path: f.summaryPath(), Status: 500, Message: "rating service down"}
			},
			calls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.api.SetRatings(f.recipeID, map[string]int{"a": 2, f.userID: 3})
			w := NewWidget(f.gw, f.recipeID)
			w.Load(context.Background())
			before := w.Summary()

			f.api.ResetCalls()
			f.api.FailNext(tt.fault(f))
			err := w.Rate(context.Background(), 5)
			if !core.Is(err, core.KindAPI) {
				t.Fatalf("expected api error, got %v", err)
			}

			after := w.Summary()
			if *after.Average != *before.Average || after.Count != before.Count || *after.UserRating != 3 {
				t.Errorf("summary changed: before %+v after %+v", before, after)
			}
			if w.State() != Failed || w.Message() != "rating service down" {
				t.Errorf("state %v message %q", w.State(), w.Message())
			}
			if n := len(f.api.Calls()); n != tt.calls {
				t.Errorf("got %d calls, want %d", n, tt.calls)
			}
		})
	}
}

func TestRate_OutOfRange(t *testing.T) {
	f := newFixture(t)
	w := NewWidget(f.gw, f.recipeID)

	for _, v := range []int{0, 6, -1} {
		if err := w.Rate(context.Background(), v); !core.Is(err, core.KindValidation) {
			t.Errorf("Rate(%d): expected validation error, got %v", v, err)
		}
	}
	if len(f.api.Calls()) != 0 {
		t.Error("invalid ratings must not reach the server")
	}
}

func TestRate_RejectsWhileSubmitting(t *testing.T) {
	f := newFixture(t)
	w := NewWidget(f.gw, f.recipeID)

	release := f.api.Hold(http.MethodPost, "/ratings")
	defer release()
	done := make(chan error, 1)
	go func() { done <- w.Rate(context.Background(), 3) }()

	waitFor(t, func() bool { return len(f.api.CallsTo(http.MethodPost, "/ratings")) == 1 })
	if w.State() != Submitting {
		t.Errorf("got %v, want submitting", w.State())
	}
	if err := w.Rate(context.Background(), 4); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	release()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if n := len(f.api.CallsTo(http.MethodPost, "/ratings")); n != 1 {
		t.Errorf("got %d submissions, want 1", n)
	}
	if s := w.Summary(); *s.UserRating != 3 {
		t.Errorf("user rating %d, want 3", *s.UserRating)
	}
}

func TestRate_HalfAverageRoundsUp(t *testing.T) {
	f := newFixture(t)
	f.api.SetRatings(f.recipeID, map[string]int{"a": 5, "b": 4, "c": 4})
	w := NewWidget(f.gw, f.recipeID)

	if err := w.Rate(context.Background(), 4); err != nil {
		t.Fatal(err)
	}
	if got := w.AverageLabel(); got != "4.3 / 5" {
		t.Errorf("AverageLabel() = %q, want %q", got, "4.3 / 5")
	}
}

func TestLoad_DuringSubmissionKeepsRateResult(t *testing.T) {
	f := newFixture(t)
	w := NewWidget(f.gw, f.recipeID)

	release := f.api.Hold(http.MethodPost, "/ratings")
	defer release()
	done := make(chan error, 1)
	go func() { done <- w.Rate(context.Background(), 5) }()

	waitFor(t, func() bool { return len(f.api.CallsTo(http.MethodPost, "/ratings")) == 1 })
	w.Load(context.Background())
	if w.State() != Submitting {
		t.Errorf("got %v after Load, want submitting", w.State())
	}
	release()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	s := w.Summary()
	if s.Count != 1 || s.UserRating == nil || *s.UserRating != 5 {
		t.Errorf("after Rate(5): count=%d userRating=%v", s.Count, s.UserRating)
	}
	if n := len(f.api.CallsTo(http.MethodGet, f.summaryPath())); n != 1 {
		t.Errorf("expected only the post-submit refetch, got %d summary reads", n)
	}
}

func TestLoad_FailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.api.FailNext(mockapi.Fault{Method: http.MethodGet, Path: f.summaryPath(), Status: 502, Message: "bad gateway"})
	w := NewWidget(f.gw, f.recipeID)

	w.Load(context.Background())

	if w.AverageLabel() != "— / 5" || w.CountLabel() != "0" {
		t.Errorf("labels: %q %q", w.AverageLabel(), w.CountLabel())
	}
	if w.State() != Idle || w.Message() != "" {
		t.Error("load failure should not mark the widget failed")
	}
}

func TestClose_DropsLateResult(t *testing.T) {
	f := newFixture(t)
	w := NewWidget(f.gw, f.recipeID)

	release := f.api.Hold(http.MethodGet, f.summaryPath())
	defer release()
	done := make(chan error, 1)
	go func() { done <- w.Rate(context.Background(), 5) }()

	waitFor(t, func() bool { return len(f.api.CallsTo(http.MethodGet, f.summaryPath())) == 1 })
	w.Close()
	release()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if s := w.Summary(); s.Count != 0 || s.UserRating != nil {
		t.Errorf("closed widget applied a late summary: %+v", s)
	}
	if err := w.Rate(context.Background(), 4); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestAverageLabel(t *testing.T) {
	avg := func(v float64) *float64 { return &v }
	tests := []struct {
		average *float64
		want    string
	}{
		{nil, "— / 5"},
		{avg(0), "— / 5"},
		{avg(4.2), "4.2 / 5"},
		{avg(3), "3.0 / 5"},
		{avg(4.25), "4.3 / 5"},
		{avg(4.75), "4.8 / 5"},
	}
	for _, tt := range tests {
		w := &Widget{summary: core.RatingSummary{Average: tt.average}}
		if got := w.AverageLabel(); got != tt.want {
			t.Errorf("AverageLabel(%v) = %q, want %q", tt.average, got, tt.want)
		}
	}
}
