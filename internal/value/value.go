// Package value defines the polymorphic value type shared by distributions,
// emissions, and relations: a small closed sum type over {bool, int, float,
// string, pair<Value,Value>}, expressed as a Go interface with an
// unexported marker method rather than a reflective adapter (SPEC_FULL.md
// §9 — no std::variant/std::visit equivalent, and no DistributionAdapter:
// string-typed and numeric-typed relations are separate instances of the
// polymorphic relation, each with a dedicated distribution family).
package value

import "fmt"

// Value is any of Bool, Int, Float, Str, or Pair.
type Value interface {
	isValue()
	String() string
}

// Bool is a boolean-valued observation (e.g. a Bernoulli attribute).
type Bool bool

func (Bool) isValue() {}
func (b Bool) String() string { return fmt.Sprintf("%t", bool(b)) }

// Int is an integer-valued observation (e.g. a Skellam count).
type Int int64

func (Int) isValue() {}
func (i Int) String() string { return fmt.Sprintf("%d", int64(i)) }

// Float is a real-valued observation (e.g. a Normal attribute).
type Float float64

func (Float) isValue() {}
func (f Float) String() string { return fmt.Sprintf("%g", float64(f)) }

// Str is a string-valued observation (e.g. a Bigram or StringCat
// attribute).
type Str string

func (Str) isValue() {}
func (s Str) String() string { return string(s) }

// Pair is a (clean, dirty) pair, the value type every Emission is a
// Distribution over.
type Pair struct {
	Clean Value
	Dirty Value
}

func (Pair) isValue() {}
func (p Pair) String() string { return fmt.Sprintf("(%s, %s)", p.Clean, p.Dirty) }

// AsBool extracts the bool payload of v, panicking if v is not a Bool —
// callers only invoke this after the schema has already fixed the
// relation's value type, so a mismatch here is a contract violation.
func AsBool(v Value) bool {
	b, ok := v.(Bool)
	if !ok {
		panic(fmt.Sprintf("value: expected Bool, got %T", v))
	}
	return bool(b)
}

// AsInt extracts the int64 payload of v.
func AsInt(v Value) int64 {
	i, ok := v.(Int)
	if !ok {
		panic(fmt.Sprintf("value: expected Int, got %T", v))
	}
	return int64(i)
}

// AsFloat extracts the float64 payload of v.
func AsFloat(v Value) float64 {
	f, ok := v.(Float)
	if !ok {
		panic(fmt.Sprintf("value: expected Float, got %T", v))
	}
	return float64(f)
}

// AsStr extracts the string payload of v.
func AsStr(v Value) string {
	s, ok := v.(Str)
	if !ok {
		panic(fmt.Sprintf("value: expected Str, got %T", v))
	}
	return string(s)
}

// AsPair extracts the (clean, dirty) payload of v.
func AsPair(v Value) Pair {
	p, ok := v.(Pair)
	if !ok {
		panic(fmt.Sprintf("value: expected Pair, got %T", v))
	}
	return p
}

// Equal reports whether two Values carry the same type and payload.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case Str:
		bv, ok := b.(Str)
		return ok && av == bv
	case Pair:
		bv, ok := b.(Pair)
		return ok && Equal(av.Clean, bv.Clean) && Equal(av.Dirty, bv.Dirty)
	default:
		return false
	}
}
