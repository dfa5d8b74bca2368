package params

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// NumAgeBuckets is the number of 10-year age buckets; the last one is 80+.
const NumAgeBuckets = 9

// AgeBucket maps an age in years to its bucket index.
func AgeBucket(age uint8) int {
	b := int(age) / 10
	if b >= NumAgeBuckets {
		return NumAgeBuckets - 1
	}
	return b
}

// AgeParam is a parameter that is either a scalar or varies by age bucket.
type AgeParam struct {
	values [NumAgeBuckets]float64
	scalar bool
}

// Scalar returns an age-independent parameter.
func Scalar(v float64) AgeParam {
	p := AgeParam{scalar: true}
	for i := range p.values {
		p.values[i] = v
	}
	return p
}

// Distribution returns a parameter with one value per age bucket.
func Distribution(values [NumAgeBuckets]float64) AgeParam {
	return AgeParam{values: values}
}

// At returns the value for the given age.
func (p AgeParam) At(age uint8) float64 {
	return p.values[AgeBucket(age)]
}

// Bucket returns the value for bucket i.
func (p AgeParam) Bucket(i int) float64 {
	return p.values[i]
}

// IsScalar reports whether the parameter is age-independent.
func (p AgeParam) IsScalar() bool {
	return p.scalar
}

// Values returns a copy of the per-bucket values.
func (p AgeParam) Values() [NumAgeBuckets]float64 {
	return p.values
}

// Map applies f to every bucket.
func (p AgeParam) Map(f func(float64) float64) AgeParam {
	out := p
	for i, v := range p.values {
		out.values[i] = f(v)
	}
	return out
}

// Add returns the bucket-wise sum of p and q.
func (p AgeParam) Add(q AgeParam) AgeParam {
	out := AgeParam{scalar: p.scalar && q.scalar}
	for i := range out.values {
		out.values[i] = p.values[i] + q.values[i]
	}
	return out
}

// UnmarshalYAML accepts either a number or a list of nine numbers.
func (p *AgeParam) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("age param: %w", err)
		}
		*p = Scalar(v)
		return nil
	case yaml.SequenceNode:
		var vs []float64
		if err := node.Decode(&vs); err != nil {
			return fmt.Errorf("age param: %w", err)
		}
		if len(vs) != NumAgeBuckets {
			return fmt.Errorf("age param: want %d buckets, got %d", NumAgeBuckets, len(vs))
		}
		var arr [NumAgeBuckets]float64
		copy(arr[:], vs)
		*p = Distribution(arr)
		return nil
	}
	return fmt.Errorf("age param: line %d: expected number or list", node.Line)
}

// MarshalYAML writes scalars as numbers and distributions as lists.
func (p AgeParam) MarshalYAML() (any, error) {
	if p.scalar {
		return p.values[0], nil
	}
	return p.values[:], nil
}
