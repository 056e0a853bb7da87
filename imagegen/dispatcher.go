package imagegen

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Dispatcher runs a request against a primary provider and, when the failure
// allows it, once against a secondary.
type Dispatcher struct {
	logger logrus.FieldLogger
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger used to report fallbacks
func WithLogger(l logrus.FieldLogger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a dispatcher
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	d := &Dispatcher{logger: discard}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Generate validates req and sends it to primary. The secondary is tried at
// most once, with the same prompt and reference image, and only for failures
// accepted by ShouldFallback. secondary may be nil.
func (d *Dispatcher) Generate(ctx context.Context, req *Request, primary, secondary Provider) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if primary == nil {
		return nil, ErrNoProvider
	}

	res, err := d.call(ctx, primary, req)
	if err == nil {
		return res, nil
	}

	log := d.logger.WithFields(logrus.Fields{"provider": primary.Name(), "error": err})
	if ctx.Err() != nil || secondary == nil || !ShouldFallback(err) {
		log.Debug("image generation failed without fallback")
		return nil, err
	}

	log.WithField("secondary", secondary.Name()).Info("falling back to secondary image provider")
	res, secErr := d.call(ctx, secondary, req)
	if secErr != nil {
		return nil, fmt.Errorf("secondary %s failed after primary %s: %w", secondary.Name(), primary.Name(), secErr)
	}
	res.FellBack = true
	res.PrimaryErr = err
	return res, nil
}

func (d *Dispatcher) call(ctx context.Context, p Provider, req *Request) (*Result, error) {
	// Each provider gets its own copy so nothing it does leaks into the other attempt.
	r := *req
	r.Provider = p.Name()

	res, err := p.Generate(ctx, &r)
	if err != nil {
		return nil, err
	}
	if res == nil || res.ImageURL == "" {
		return nil, fmt.Errorf("%s: %w", p.Name(), ErrEmptyResult)
	}
	if res.Provider == "" {
		res.Provider = p.Name()
	}
	return res, nil
}
