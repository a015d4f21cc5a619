package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"possettle/backend/internal/metrics"
	"possettle/backend/internal/store"
)

const (
	DefaultInvoicePrefix     = "INV"
	DefaultInvoiceRetryDelay = 25 * time.Millisecond

	invoiceMaxAttempts      = 3
	invoiceFallbackAttempts = 5
)

// InvoiceSequence hands out a monotonically increasing counter per day.
type InvoiceSequence interface {
	NextInvoiceSequence(ctx context.Context, day string) (int64, error)
}

// InvoiceGenerator produces invoice numbers of the form
// PREFIX-YYYYMMDD-NNNNNN-RRRR and falls back to PREFIX-<epoch ms>-<0..999>
// when the sequence is unavailable or keeps colliding.
type InvoiceGenerator struct {
	sequence   InvoiceSequence
	prefix     string
	retryDelay time.Duration
	now        func() time.Time
}

func NewInvoiceGenerator(sequence InvoiceSequence, prefix string, retryDelay time.Duration) *InvoiceGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultInvoicePrefix
	}
	if retryDelay < 0 {
		retryDelay = 0
	}
	return &InvoiceGenerator{
		sequence:   sequence,
		prefix:     prefix,
		retryDelay: retryDelay,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Next never fails. A sequence error degrades to the fallback format.
func (g *InvoiceGenerator) Next(ctx context.Context) string {
	day := g.now().Format("20060102")
	if g.sequence == nil {
		return g.fallbackFor("no_sequence")
	}

	seq, err := g.sequence.NextInvoiceSequence(ctx, day)
	if err != nil || seq < 1 {
		log.Printf("[invoice] WARN: sequence unavailable for day=%s, using fallback: %v", day, err)
		return g.fallbackFor("sequence_error")
	}
	return fmt.Sprintf("%s-%s-%06d-%04d", g.prefix, day, seq, rand.IntN(10000))
}

func (g *InvoiceGenerator) Fallback() string {
	return fmt.Sprintf("%s-%d-%d", g.prefix, g.now().UnixMilli(), rand.IntN(1000))
}

func (g *InvoiceGenerator) fallbackFor(cause string) string {
	metrics.InvoiceFallbacks.WithLabelValues(cause).Inc()
	return g.Fallback()
}

// Reserve runs insert with fresh invoice numbers until one is accepted.
// Only store.ErrConflict is treated as a numbering race; any other error is
// returned unchanged.
func (g *InvoiceGenerator) Reserve(ctx context.Context, insert func(invoice string) error) (string, error) {
	for attempt := 1; attempt <= invoiceMaxAttempts; attempt++ {
		invoice := g.Next(ctx)
		err := insert(invoice)
		if err == nil {
			return invoice, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return "", err
		}

		metrics.InvoiceRetries.Inc()
		log.Printf("[invoice] WARN: invoice %s already taken (attempt %d/%d)", invoice, attempt, invoiceMaxAttempts)
		if attempt < invoiceMaxAttempts && g.retryDelay > 0 {
			time.Sleep(g.retryDelay)
		}
	}

	log.Printf("[invoice] WARN: primary numbering exhausted after %d attempts, switching to fallback", invoiceMaxAttempts)
	var lastErr error
	for i := 0; i < invoiceFallbackAttempts; i++ {
		invoice := g.fallbackFor("conflict")
		err := insert(invoice)
		if err == nil {
			return invoice, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("invoice numbering exhausted: %w", lastErr)
}
