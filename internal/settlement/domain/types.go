package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Outcome é o resultado 1x2 de uma partida
type Outcome string

const (
	Home Outcome = "home"
	Draw Outcome = "draw"
	Away Outcome = "away"
)

// Outcomes na ordem 1x2
var Outcomes = []Outcome{Home, Draw, Away}

// ParseOutcome aceita "home", "Home", "HOME", ...
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(s)))
	if !o.Valid() {
		return "", fmt.Errorf("%w: outcome %q", ErrInvalidInput, s)
	}
	return o, nil
}

func (o Outcome) Valid() bool {
	switch o {
	case Home, Draw, Away:
		return true
	}
	return false
}

func (o *Outcome) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Currency identifica a moeda virtual da aposta
type Currency string

const (
	Tokens   Currency = "tokens"
	Diamonds Currency = "diamonds"
)

func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToLower(strings.TrimSpace(s)))
	if c != Tokens && c != Diamonds {
		return "", fmt.Errorf("%w: currency %q", ErrInvalidInput, s)
	}
	return c, nil
}

func (c *Currency) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseCurrency(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// MatchStatus segue upcoming -> live -> finished, nunca para trás
type MatchStatus string

const (
	StatusUpcoming MatchStatus = "upcoming"
	StatusLive     MatchStatus = "live"
	StatusFinished MatchStatus = "finished"
)

func (s MatchStatus) rank() int {
	switch s {
	case StatusUpcoming:
		return 0
	case StatusLive:
		return 1
	case StatusFinished:
		return 2
	}
	return -1
}

func (s MatchStatus) Valid() bool { return s.rank() >= 0 }

// Precedes indica se next é um avanço válido a partir de s
func (s MatchStatus) Precedes(next MatchStatus) bool {
	return s.Valid() && next.Valid() && s.rank() < next.rank()
}
