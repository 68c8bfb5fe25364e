// Package ratings keeps a recipe's rating aggregate consistent with the
// server: a rating is submitted, then the authoritative summary is fetched
// again and replaces the local copy. Nothing is computed client-side.
package ratings

import (
	"context"
	"errors"
	"flavorai-client/core"
	"flavorai-client/gateway"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// State is the submission state of a Widget.
type State int

const (
	Idle State = iota
	Submitting
	// Failed is idle with the last submission's error message kept.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy is returned while another submission is in flight.
	ErrBusy = errors.New("ratings: a rating is already being submitted")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("ratings: widget closed")
)

// Widget is the rating block of one recipe view.
type Widget struct {
	gw       *gateway.Gateway
	recipeID string
	guard    core.Guard

	mu      sync.Mutex
	state   State
	summary core.RatingSummary
	message string
}

// NewWidget returns an idle, unrated widget for recipeID.
func NewWidget(gw *gateway.Gateway, recipeID string) *Widget {
	return &Widget{gw: gw, recipeID: recipeID}
}

// Load fetches the summary. A failure leaves the widget unrated and is only
// logged; the rest of the view does not depend on it. Load is a no-op while a
// submission is in flight, and a submission started during Load wins.
func (w *Widget) Load(ctx context.Context) {
	if w.guard.Closed() {
		return
	}
	// Take the ticket before checking the state: Rate marks Submitting before
	// it begins a new generation, so either we see Submitting or our ticket
	// is superseded.
	ticket := w.guard.Current()

	w.mu.Lock()
	busy := w.state == Submitting
	w.mu.Unlock()
	if busy {
		logrus.WithField("recipe_id", w.recipeID).Debug("Skipping rating load during submission")
		return
	}

	summary, err := w.fetch(ctx)
	if err != nil {
		logrus.WithError(err).WithField("recipe_id", w.recipeID).Warn("Failed to load rating summary")
		return
	}
	ticket.Apply(func() {
		w.mu.Lock()
		w.summary = summary
		w.mu.Unlock()
	})
}

// Rate submits value and then refetches the summary. Values outside
// MinRating..MaxRating and calls made while a submission is in flight are
// rejected without a request. On any failure the displayed summary is kept.
func (w *Widget) Rate(ctx context.Context, value int) error {
	if value < core.MinRating || value > core.MaxRating {
		return core.NewValidation(fmt.Sprintf("Rating must be between %d and %d", core.MinRating, core.MaxRating))
	}

	if w.guard.Closed() {
		return ErrClosed
	}

	w.mu.Lock()
	if w.state == Submitting {
		w.mu.Unlock()
		return ErrBusy
	}
	w.state = Submitting
	w.message = ""
	w.mu.Unlock()

	ticket := w.guard.Begin()
	log := logrus.WithFields(logrus.Fields{"recipe_id": w.recipeID, "rating": value})

	_, err := w.gw.Request(ctx, "/ratings", gateway.Options{
		Method: http.MethodPost,
		JSON:   core.RatingSubmission{RecipeID: w.recipeID, Rating: value},
	})
	if err != nil {
		log.WithError(err).Warn("Failed to submit rating")
		w.finish(ticket, nil, core.Message(err, "Failed to rate"))
		return err
	}

	// Only after the submission is acknowledged.
	summary, err := w.fetch(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to refresh rating summary")
		w.finish(ticket, nil, core.Message(err, "Failed to rate"))
		return err
	}

	w.finish(ticket, &summary, "")
	log.Info("Rating submitted")
	return nil
}

// finish leaves Submitting. summary replaces the local copy wholesale when
// non-nil and the ticket is still current.
func (w *Widget) finish(ticket core.Ticket, summary *core.RatingSummary, message string) {
	applied := ticket.Apply(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if summary != nil {
			w.summary = *summary
		}
		w.message = message
		if message != "" {
			w.state = Failed
		} else {
			w.state = Idle
		}
	})
	if applied {
		return
	}

	// Superseded or closed: drop the result but do not stay busy.
	w.mu.Lock()
	if w.state == Submitting {
		w.state = Idle
	}
	w.mu.Unlock()
}

func (w *Widget) fetch(ctx context.Context) (core.RatingSummary, error) {
	return gateway.Fetch[core.RatingSummary](ctx, w.gw, "/ratings/recipe/"+url.PathEscape(w.recipeID), gateway.Options{})
}

// State returns the submission state.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Message returns the error of the last failed submission.
func (w *Widget) Message() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.message
}

// Summary returns a copy of the displayed summary.
func (w *Widget) Summary() core.RatingSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := core.RatingSummary{Count: w.summary.Count}
	if w.summary.Average != nil {
		avg := *w.summary.Average
		out.Average = &avg
	}
	if w.summary.UserRating != nil {
		r := *w.summary.UserRating
		out.UserRating = &r
	}
	return out
}

// AverageLabel renders the average with one decimal, e.g. "4.2 / 5", and a
// dash in place of the number when unrated.
func (w *Widget) AverageLabel() string {
	s := w.Summary()
	if s.Average == nil || *s.Average == 0 {
		return "— / 5"
	}
	// Halves round up, so 4.25 reads 4.3.
	rounded := math.Round(*s.Average*10) / 10
	return fmt.Sprintf("%.1f / %d", rounded, core.MaxRating)
}

// CountLabel renders the number of ratings.
func (w *Widget) CountLabel() string {
	return strconv.Itoa(w.Summary().Count)
}

// Close discards the widget. Results still in flight are dropped.
func (w *Widget) Close() {
	w.guard.Close()
}
