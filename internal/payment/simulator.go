package payment

import (
	"context"
	"strings"
	"time"

	"possettle/backend/internal/xid"
)

const (
	DefaultDeclinePAN         = "4000000000000002"
	DefaultDeclinePhonePrefix = "+62800"
)

// Simulator is an in-process stand-in for the card and mobile-money
// gateways. It approves everything except the configured decline triggers.
type Simulator struct {
	DeclinePAN         string
	DeclinePhonePrefix string
	Latency            time.Duration
}

func NewSimulator(declinePAN string) *Simulator {
	if strings.TrimSpace(declinePAN) == "" {
		declinePAN = DefaultDeclinePAN
	}
	return &Simulator{
		DeclinePAN:         declinePAN,
		DeclinePhonePrefix: DefaultDeclinePhonePrefix,
	}
}

func (s *Simulator) ChargeCard(ctx context.Context, charge CardCharge) (Result, error) {
	if err := s.wait(ctx); err != nil {
		return Result{}, err
	}
	if digitsOnly(charge.Card.PAN) == digitsOnly(s.DeclinePAN) {
		return Result{Approved: false, DeclineReason: "card declined by issuer"}, nil
	}
	return Result{Approved: true, Reference: xid.New("sim-card")}, nil
}

func (s *Simulator) CollectMobile(ctx context.Context, collection MobileCollection) (Result, error) {
	if err := s.wait(ctx); err != nil {
		return Result{}, err
	}
	if s.DeclinePhonePrefix != "" && strings.HasPrefix(collection.Phone, s.DeclinePhonePrefix) {
		return Result{Approved: false, DeclineReason: "wallet has insufficient balance"}, nil
	}
	return Result{Approved: true, Reference: xid.New("sim-mobile")}, nil
}

func (s *Simulator) wait(ctx context.Context) error {
	if s.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
