package registry

import "github.com/aristath/epochscript/internal/domain"

// init registers the fixed set of transforms the compiler itself depends on
// structurally: literals, casts, arithmetic/comparison/logical operators,
// lag, and the boolean-select specializations (spec §4.2-§4.4). These are
// not "the built-in transform library" of spec §1 (that remains an external
// collaborator) — they are the handful of node types the compiler *emits*
// on the user's behalf and therefore must itself know the shape of.
func init() {
	registerLiterals(Global)
	registerCasts(Global)
	registerArithmetic(Global)
	registerComparisons(Global)
	registerLogical(Global)
	registerLag(Global)
	registerBooleanSelect(Global)
	registerSourcesAndSinks(Global)
	registerDemoIndicators(Global)
}

func numOut() []IOHandle { return []IOHandle{{Id: "result", Type: domain.Number}} }

func registerLiterals(r *Registry) {
	r.Register(Metadata{Id: "number", Outputs: numOut(),
		Options: []Option{{Id: "value", Type: domain.Decimal, IsRequired: true}}})
	r.Register(Metadata{Id: "bool_true", Outputs: []IOHandle{{Id: "result", Type: domain.Boolean}}})
	r.Register(Metadata{Id: "bool_false", Outputs: []IOHandle{{Id: "result", Type: domain.Boolean}}})
	r.Register(Metadata{Id: "text", Outputs: []IOHandle{{Id: "result", Type: domain.String}},
		Options: []Option{{Id: "value", Type: domain.String, IsRequired: true}}})
	r.Register(Metadata{Id: "null_number", Outputs: numOut()})
	r.Register(Metadata{Id: "null_boolean", Outputs: []IOHandle{{Id: "result", Type: domain.Boolean}}})
	r.Register(Metadata{Id: "null_string", Outputs: []IOHandle{{Id: "result", Type: domain.String}}})
	r.Register(Metadata{Id: "null_timestamp", Outputs: []IOHandle{{Id: "result", Type: domain.Timestamp}}})
}

func oneIn(t domain.DataType) []IOHandle { return []IOHandle{{Id: "SLOT", Type: t}} }

func registerCasts(r *Registry) {
	targets := []struct {
		id string
		dt domain.DataType
	}{
		{"static_cast_to_integer", domain.Integer},
		{"static_cast_to_decimal", domain.Decimal},
		{"static_cast_to_number", domain.Number},
		{"static_cast_to_boolean", domain.Boolean},
		{"static_cast_to_string", domain.String},
		{"static_cast_to_timestamp", domain.Timestamp},
	}
	for _, t := range targets {
		r.Register(Metadata{Id: t.id, Inputs: oneIn(domain.Any), Outputs: []IOHandle{{Id: "result", Type: t.dt}}})
	}
	r.Register(Metadata{Id: "stringify", Inputs: oneIn(domain.Any), Outputs: []IOHandle{{Id: "result", Type: domain.String}}})
}

func twoIn() []IOHandle {
	return []IOHandle{{Id: "*0", Type: domain.Number}, {Id: "*1", Type: domain.Number}}
}

func registerArithmetic(r *Registry) {
	for _, id := range []string{"add", "sub", "mul", "div", "modulo", "power_op"} {
		r.Register(Metadata{Id: id, Inputs: twoIn(), Outputs: numOut()})
	}
}

func registerComparisons(r *Registry) {
	boolOut := []IOHandle{{Id: "result", Type: domain.Boolean}}
	for _, id := range []string{"lt", "gt", "le", "ge", "eq", "ne"} {
		r.Register(Metadata{Id: id,
			Inputs:  []IOHandle{{Id: "*0", Type: domain.Any}, {Id: "*1", Type: domain.Any}},
			Outputs: boolOut})
	}
}

func registerLogical(r *Registry) {
	boolOut := []IOHandle{{Id: "result", Type: domain.Boolean}}
	boolIn2 := []IOHandle{{Id: "*0", Type: domain.Boolean}, {Id: "*1", Type: domain.Boolean}}
	r.Register(Metadata{Id: "logical_and", Inputs: boolIn2, Outputs: boolOut})
	r.Register(Metadata{Id: "logical_or", Inputs: boolIn2, Outputs: boolOut})
	r.Register(Metadata{Id: "logical_not", Inputs: oneIn(domain.Boolean), Outputs: boolOut})
}

func registerLag(r *Registry) {
	variants := []struct {
		id string
		dt domain.DataType
	}{
		{"lag_number", domain.Number},
		{"lag_string", domain.String},
		{"lag_boolean", domain.Boolean},
		{"lag_timestamp", domain.Timestamp},
	}
	for _, v := range variants {
		r.Register(Metadata{Id: v.id,
			Inputs:  oneIn(v.dt),
			Outputs: []IOHandle{{Id: "result", Type: v.dt}},
			Options: []Option{{Id: "period", Type: domain.Integer, IsRequired: true}},
		})
	}
}

func registerBooleanSelect(r *Registry) {
	variants := []struct {
		id string
		dt domain.DataType
	}{
		{"boolean_select_number", domain.Number},
		{"boolean_select_string", domain.String},
		{"boolean_select_boolean", domain.Boolean},
		{"boolean_select_timestamp", domain.Timestamp},
	}
	for _, v := range variants {
		r.Register(Metadata{Id: v.id,
			Inputs: []IOHandle{
				{Id: "condition", Type: domain.Boolean},
				{Id: "true", Type: v.dt},
				{Id: "false", Type: v.dt},
			},
			Outputs: []IOHandle{{Id: "result", Type: v.dt}},
		})
	}
}

func registerSourcesAndSinks(r *Registry) {
	r.Register(Metadata{
		Id: "market_data_source",
		Outputs: []IOHandle{
			{Id: "o", Type: domain.Number},
			{Id: "h", Type: domain.Number},
			{Id: "l", Type: domain.Number},
			{Id: "c", Type: domain.Number},
			{Id: "v", Type: domain.Number},
		},
		Options: []Option{
			{Id: "symbol", Type: domain.String},
		},
	})
	r.Register(Metadata{
		Id:     domain.ExecutorTransformType,
		Inputs: oneIn(domain.Boolean),
	})
}

// registerDemoIndicators wires a small set of concrete, real transforms
// (ema, rsi, sma) so the registry is exercised by something with an actual
// numerical implementation rather than purely structural node types. Their
// execution lives in internal/registry/demo_executor.go, grounded on
// markcheno/go-talib; per spec §1 this is still "the built-in transform
// library" territory and remains swappable behind IDataFlowOrchestrator.
func registerDemoIndicators(r *Registry) {
	periodOption := Option{Id: "period", Type: domain.Integer, IsRequired: true, HasMin: true, Min: 1, HasDefault: true,
		Default: domain.OptionValue{Kind: domain.OptionNumber, Num: 14}}
	for _, id := range []string{"ema", "sma", "rsi"} {
		r.Register(Metadata{
			Id:      id,
			Inputs:  oneIn(domain.Number),
			Outputs: numOut(),
			Options: []Option{periodOption},
		})
	}
}
