package domain

import "github.com/pkg/errors"

// SubscriptionType enumerates the three filter shapes a session may hold.
type SubscriptionType string

const (
	SubscribeAllTrades SubscriptionType = "all_transactions"
	SubscribeTrades    SubscriptionType = "transactions"
	SubscribeCandles   SubscriptionType = "klines"
)

// Subscription is a bus filter in its wire shape. Tokens is meaningful for
// SubscribeTrades, Token and Interval for SubscribeCandles.
type Subscription struct {
	Type     SubscriptionType `json:"type"`
	Tokens   []string         `json:"tokens,omitempty"`
	Token    string           `json:"token,omitempty"`
	Interval Interval         `json:"interval,omitempty"`
}

func (s Subscription) Validate() error {
	switch s.Type {
	case SubscribeAllTrades:
		return nil
	case SubscribeTrades:
		if len(s.Tokens) == 0 {
			return errors.Wrap(ErrInvalidSubscription, "transactions requires at least one token")
		}
		return nil
	case SubscribeCandles:
		if s.Token == "" {
			return errors.Wrap(ErrInvalidSubscription, "klines requires a token")
		}
		if _, err := ParseInterval(string(s.Interval)); err != nil {
			return err
		}
		return nil
	default:
		return errors.Wrapf(ErrInvalidSubscription, "unknown type %q", s.Type)
	}
}

// Matches reports whether ev passes this filter.
func (s Subscription) Matches(ev Event) bool {
	switch s.Type {
	case SubscribeAllTrades:
		return ev.Kind == EventKindTrade
	case SubscribeTrades:
		if ev.Kind != EventKindTrade {
			return false
		}
		for _, token := range s.Tokens {
			if token == ev.Trade.Token {
				return true
			}
		}
		return false
	case SubscribeCandles:
		return ev.Kind == EventKindCandle &&
			ev.Update.Candle.Token == s.Token &&
			ev.Update.Candle.Interval == s.Interval
	}

	return false
}

// Equal compares two filters structurally. Unsubscribing removes the stored
// filter that equals the requested one.
func (s Subscription) Equal(other Subscription) bool {
	if s.Type != other.Type {
		return false
	}
	switch s.Type {
	case SubscribeTrades:
		if len(s.Tokens) != len(other.Tokens) {
			return false
		}
		for i := range s.Tokens {
			if s.Tokens[i] != other.Tokens[i] {
				return false
			}
		}
		return true
	case SubscribeCandles:
		return s.Token == other.Token && s.Interval == other.Interval
	}

	return true
}
