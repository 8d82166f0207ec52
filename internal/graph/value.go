package graph

import "sort"

type Kind int

const (
	KindScalar Kind = iota
	// KindComposite is a projected node, relationship or map whose
	// properties are flattened during formatting.
	KindComposite
)

// Value is one column value of a result record.
type Value struct {
	kind   Kind
	scalar any
	props  map[string]any
}

func Scalar(v any) Value {
	return Value{kind: KindScalar, scalar: v}
}

func Composite(props map[string]any) Value {
	if props == nil {
		props = map[string]any{}
	}
	return Value{kind: KindComposite, props: props}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) Scalar() any {
	return v.scalar
}

func (v Value) Props() map[string]any {
	return v.props
}

// PropKeys returns property names in sorted order.
func (v Value) PropKeys() []string {
	keys := make([]string, 0, len(v.props))
	for k := range v.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Record is one result row; Keys and Values are index-aligned and keep the
// column order the store returned.
type Record struct {
	Keys   []string
	Values []Value
}

func (r Record) Get(key string) (Value, bool) {
	for i, k := range r.Keys {
		if k == key {
			return r.Values[i], true
		}
	}
	return Value{}, false
}
