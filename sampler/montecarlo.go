package sampler

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Parameter distributions understood by the Monte Carlo generator
const (
	DistNormal      = "normal"
	DistUniform     = "uniform"
	DistExponential = "exponential"
	DistPoisson     = "poisson"
)

// DefaultMonteCarloSeed is used when no seed is given
const DefaultMonteCarloSeed = 42

// ColIteration is the first column of every Monte Carlo row
const ColIteration = "iteration"

// Parameter describes how one Monte Carlo column is drawn. Min and Max bound
// uniform draws and clamp every other distribution; Discrete rounds the
// result to the nearest integer (half to even).
type Parameter struct {
	Name         string   `yaml:"-" json:"name"`
	Distribution string   `yaml:"distribution,omitempty" json:"distribution"` // Empty means uniform
	Mean         float64  `yaml:"mean,omitempty" json:"mean,omitempty"`
	Std          float64  `yaml:"std,omitempty" json:"std,omitempty"`
	Lambda       float64  `yaml:"lambda,omitempty" json:"lambda,omitempty"`
	Min          *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max          *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Discrete     bool     `yaml:"discrete,omitempty" json:"discrete,omitempty"`
}

func (p Parameter) kind() string {
	if p.Distribution == "" {
		return DistUniform
	}
	return p.Distribution
}

// Validate checks that the parameter can be sampled
func (p Parameter) Validate() error {
	if p.Name == "" {
		return ErrInvalidConfig("parameters: empty parameter name")
	}
	if p.Name == ColIteration {
		return ErrInvalidConfig(fmt.Sprintf("parameters.%s: name is reserved", p.Name))
	}
	if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
		return ErrInvalidConfig(fmt.Sprintf("parameters.%s: min must be <= max", p.Name))
	}
	switch p.kind() {
	case DistNormal:
		if p.Std < 0 {
			return ErrInvalidConfig(fmt.Sprintf("parameters.%s.std must be >= 0", p.Name))
		}
	case DistUniform:
		if p.Min == nil || p.Max == nil {
			return ErrInvalidConfig(fmt.Sprintf("parameters.%s: uniform needs min and max", p.Name))
		}
	case DistExponential:
		if p.Lambda <= 0 {
			return ErrInvalidConfig(fmt.Sprintf("parameters.%s.lambda must be > 0", p.Name))
		}
	case DistPoisson:
		if p.Lambda < 0 {
			return ErrInvalidConfig(fmt.Sprintf("parameters.%s.lambda must be >= 0", p.Name))
		}
	default:
		return ErrInvalidConfig(fmt.Sprintf("parameters.%s: unknown distribution %q", p.Name, p.Distribution))
	}
	return nil
}

// Sample draws one value from rng
func (p Parameter) Sample(rng *rand.Rand) float64 {
	var v float64
	switch p.kind() {
	case DistNormal:
		v = p.Mean + rng.NormFloat64()*p.Std
	case DistUniform:
		v = *p.Min + rng.Float64()*(*p.Max-*p.Min)
	case DistExponential:
		v = rng.ExpFloat64() / p.Lambda
	case DistPoisson:
		v = poisson(rng, p.Lambda)
	}
	if p.Min != nil {
		v = math.Max(v, *p.Min)
	}
	if p.Max != nil {
		v = math.Min(v, *p.Max)
	}
	if p.Discrete {
		v = math.RoundToEven(v)
	}
	return v
}

// poisson uses Knuth's product method for small means and Hörmann's
// transformed rejection (PTRS) otherwise.
func poisson(rng *rand.Rand, lambda float64) float64 {
	if lambda == 0 {
		return 0
	}
	if lambda < 10 {
		limit := math.Exp(-lambda)
		k, prod := 0.0, rng.Float64()
		for prod > limit {
			k++
			prod *= rng.Float64()
		}
		return k
	}

	slam := math.Sqrt(lambda)
	logLam := math.Log(lambda)
	b := 0.931 + 2.53*slam
	a := -0.059 + 0.02483*b
	invAlpha := 1.1239 + 1.1328/(b-3.4)
	vr := 0.9277 - 3.6224/(b-2)
	for {
		u := rng.Float64() - 0.5
		v := rng.Float64()
		us := 0.5 - math.Abs(u)
		k := math.Floor((2*a/us+b)*u + lambda + 0.43)
		if us >= 0.07 && v <= vr {
			return k
		}
		if k < 0 || (us < 0.013 && v > us) {
			continue
		}
		lg, _ := math.Lgamma(k + 1)
		if math.Log(v)+math.Log(invAlpha)-math.Log(a/(us*us)+b) <= -lambda+k*logLam-lg {
			return k
		}
	}
}

// ParameterSet is an ordered list of parameters. In YAML it is a mapping
// from parameter name to its settings; key order becomes column order.
type ParameterSet []Parameter

// UnmarshalYAML decodes the name → settings mapping preserving key order
func (ps *ParameterSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: parameters must be a mapping", node.Line)
	}
	out := make(ParameterSet, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var p Parameter
		if err := node.Content[i+1].Decode(&p); err != nil {
			return err
		}
		p.Name = node.Content[i].Value
		out = append(out, p)
	}
	*ps = out
	return nil
}

// MarshalYAML writes the set back as an ordered mapping
func (ps ParameterSet) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range ps {
		var value yaml.Node
		if err := value.Encode(p); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: p.Name}, &value)
	}
	return node, nil
}

// Names returns the parameter names in column order
func (ps ParameterSet) Names() []string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name
	}
	return names
}

// Validate checks every parameter and rejects repeated names
func (ps ParameterSet) Validate() error {
	if len(ps) == 0 {
		return ErrInvalidConfig("parameters must not be empty")
	}
	seen := make(map[string]bool, len(ps))
	for _, p := range ps {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return ErrInvalidConfig(fmt.Sprintf("parameters.%s: duplicate name", p.Name))
		}
		seen[p.Name] = true
	}
	return nil
}

func f64(v float64) *float64 { return &v }

// DefaultParameters is the built-in ledger benchmark scenario
func DefaultParameters() ParameterSet {
	return ParameterSet{
		{Name: "tx_rate", Distribution: DistNormal, Mean: 100, Std: 20, Min: f64(10), Max: f64(500)},
		{Name: "block_size", Distribution: DistUniform, Min: f64(10), Max: f64(100)},
		{Name: "network_latency", Distribution: DistExponential, Lambda: 0.1, Min: f64(10), Max: f64(500)},
		{Name: "node_count", Distribution: DistUniform, Min: f64(2), Max: f64(20), Discrete: true},
	}
}

// scenarioFile is the on-disk scenario; keys other than parameters are ignored
type scenarioFile struct {
	Parameters ParameterSet `yaml:"parameters"`
}

// ParseScenario decodes a YAML scenario. A document without parameters
// yields DefaultParameters.
func ParseScenario(data []byte) (ParameterSet, error) {
	var sc scenarioFile
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, ErrInvalidConfig(fmt.Sprintf("parse scenario: %v", err))
	}
	if len(sc.Parameters) == 0 {
		return DefaultParameters(), nil
	}
	if err := sc.Parameters.Validate(); err != nil {
		return nil, err
	}
	return sc.Parameters, nil
}

// LoadScenario reads and parses a YAML scenario file
func LoadScenario(path string) (ParameterSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// MonteCarloRow is one iteration: Values[i] belongs to parameter i
type MonteCarloRow struct {
	Iteration int
	Values    []float64
}

// MonteCarloResult holds the rows of one generation together with the
// parameters that produced them
type MonteCarloResult struct {
	Parameters ParameterSet
	Rows       []MonteCarloRow
}

// Columns returns the exported header: iteration followed by parameter names
func (r *MonteCarloResult) Columns() []string {
	return append([]string{ColIteration}, r.Parameters.Names()...)
}

// Column returns the values of parameter name across all rows
func (r *MonteCarloResult) Column(name string) ([]float64, bool) {
	idx := -1
	for i, p := range r.Parameters {
		if p.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	values := make([]float64, len(r.Rows))
	for i, row := range r.Rows {
		values[i] = row.Values[idx]
	}
	return values, true
}

// Statistics summarizes every parameter in column order. P50 is the median.
func (r *MonteCarloResult) Statistics() []Summary {
	stats := make([]Summary, 0, len(r.Parameters))
	for _, p := range r.Parameters {
		values, _ := r.Column(p.Name)
		stats = append(stats, SummarizeValues(p.Name, values))
	}
	return stats
}

// ErrNoIterations is returned when asked for fewer than one iteration
var ErrNoIterations = errors.New("iterations must be >= 1")

// MonteCarloGenerator draws independent rows from a parameter set. Unlike
// Sampler it models no correlation between columns.
type MonteCarloGenerator struct {
	params ParameterSet
	rng    *rand.Rand
	logger *zap.Logger
}

// NewMonteCarloGenerator validates params. WithRand and WithLogger apply;
// without WithRand the process-wide generator is used.
func NewMonteCarloGenerator(params ParameterSet, opts ...Option) (*MonteCarloGenerator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &MonteCarloGenerator{
		params: append(ParameterSet(nil), params...),
		rng:    o.rng,
		logger: o.logger,
	}, nil
}

// Parameters returns a copy of the generator's parameter set
func (g *MonteCarloGenerator) Parameters() ParameterSet {
	return append(ParameterSet(nil), g.params...)
}

// Generate draws iterations rows. Within a row parameters are drawn in
// column order, so a seeded generator reproduces the same result.
func (g *MonteCarloGenerator) Generate(iterations int) (*MonteCarloResult, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("%w, got: %d", ErrNoIterations, iterations)
	}
	res := &MonteCarloResult{
		Parameters: g.Parameters(),
		Rows:       make([]MonteCarloRow, iterations),
	}
	for i := range res.Rows {
		values := make([]float64, len(g.params))
		for j, p := range g.params {
			values[j] = p.Sample(g.rng)
		}
		res.Rows[i] = MonteCarloRow{Iteration: i, Values: values}
	}
	g.logger.Debug("monte carlo samples generated",
		zap.Int("iterations", iterations),
		zap.Strings("parameters", g.params.Names()))
	return res, nil
}
