// Package strategy defines the trading strategy contract and the
// controller that drives strategy execution over the candle stream.
package strategy

import (
	"fmt"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/indicator"
)

// OptionType is the declared type of a strategy parameter.
type OptionType string

const (
	OptionTypeInt    OptionType = "int"
	OptionTypeFloat  OptionType = "float"
	OptionTypeString OptionType = "string"
	OptionTypeBool   OptionType = "bool"
)

// Option declares one tunable strategy parameter with its default and,
// for numeric types, the accepted range.
type Option struct {
	Name    string
	Type    OptionType
	Default any
	Min     float64
	Max     float64
}

// Params holds the resolved parameter values for a strategy run.
type Params map[string]any

// Int returns an integer parameter.
func (p Params) Int(name string) int {
	switch v := p[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Float returns a float parameter.
func (p Params) Float(name string) float64 {
	switch v := p[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// String returns a string parameter.
func (p Params) String(name string) string {
	v, _ := p[name].(string)
	return v
}

// Bool returns a boolean parameter.
func (p Params) Bool(name string) bool {
	v, _ := p[name].(bool)
	return v
}

// Strategy is a trading decision procedure. It declares its parameters
// and indicators up front; once running, OnCandle is called with the
// updated dataframe after every sealed candle and returns at most one
// trading signal.
type Strategy interface {
	// Name identifies the strategy in logs and the registry.
	Name() string
	// Timeframe is the candle interval the strategy runs on. eg: 1m, 1h, 1d
	Timeframe() string
	// WarmupPeriod is the number of sealed candles required before
	// OnCandle is called.
	WarmupPeriod() int
	// Options declares the tunable parameters and their bounds.
	Options() []Option
	// OnStart is called once with the validated parameters before any
	// candle is delivered.
	OnStart(params Params) error
	// Indicators returns the indicators to maintain for this strategy.
	// Their values appear in the dataframe metadata under each metric
	// name.
	Indicators() []indicator.Indicator
	// OnCandle runs the trading logic over the candle history. It is
	// called sequentially; a long evaluation delays later candles of
	// the same pair rather than skipping them.
	OnCandle(df *core.Dataframe) core.Signal
	// OnStop is called once when the strategy stops.
	OnStop()
}

// ResolveParams validates raw parameters against the declared options
// and fills in defaults. Unknown names, type mismatches and numeric
// values outside the declared range are rejected before the strategy
// sees a single candle.
func ResolveParams(options []Option, raw Params) (Params, error) {
	declared := make(map[string]Option, len(options))
	for _, option := range options {
		declared[option.Name] = option
	}

	for name := range raw {
		if _, ok := declared[name]; !ok {
			return nil, fmt.Errorf("%w: unknown parameter %q", core.ErrInvalidParameters, name)
		}
	}

	resolved := make(Params, len(options))
	for _, option := range options {
		value, ok := raw[option.Name]
		if !ok {
			resolved[option.Name] = option.Default
			continue
		}

		checked, err := checkParam(option, value)
		if err != nil {
			return nil, err
		}
		resolved[option.Name] = checked
	}

	return resolved, nil
}

func checkParam(option Option, value any) (any, error) {
	switch option.Type {
	case OptionTypeInt:
		var n int
		switch v := value.(type) {
		case int:
			n = v
		case float64:
			if v != float64(int(v)) {
				return nil, fmt.Errorf("%w: parameter %q must be an integer", core.ErrInvalidParameters, option.Name)
			}
			n = int(v)
		default:
			return nil, fmt.Errorf("%w: parameter %q must be an integer", core.ErrInvalidParameters, option.Name)
		}
		if float64(n) < option.Min || float64(n) > option.Max {
			return nil, fmt.Errorf("%w: parameter %q out of range [%g, %g]",
				core.ErrInvalidParameters, option.Name, option.Min, option.Max)
		}
		return n, nil

	case OptionTypeFloat:
		var f float64
		switch v := value.(type) {
		case float64:
			f = v
		case int:
			f = float64(v)
		default:
			return nil, fmt.Errorf("%w: parameter %q must be a number", core.ErrInvalidParameters, option.Name)
		}
		if f < option.Min || f > option.Max {
			return nil, fmt.Errorf("%w: parameter %q out of range [%g, %g]",
				core.ErrInvalidParameters, option.Name, option.Min, option.Max)
		}
		return f, nil

	case OptionTypeString:
		v, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: parameter %q must be a string", core.ErrInvalidParameters, option.Name)
		}
		return v, nil

	case OptionTypeBool:
		v, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: parameter %q must be a boolean", core.ErrInvalidParameters, option.Name)
		}
		return v, nil
	}

	return nil, fmt.Errorf("%w: parameter %q has unknown type %q", core.ErrInvalidParameters, option.Name, option.Type)
}
