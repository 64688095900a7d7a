package fan

// valueKind tags which variant a Value holds.
type valueKind uint8

const (
	valueAbsent valueKind = iota
	valueFixed
	valueFunc
)

// Value is an action parameter of type V that is resolved when the action
// plays with a context of type T.
//
// A Value is one of:
//   - absent (the zero Value): the attribute is left untouched
//   - fixed: the same constant every time (Fixed)
//   - a function of the context, evaluated at play time (Func, FuncErr)
type Value[T, V any] struct {
	kind  valueKind
	fixed V
	fn    func(T) (V, error)
}

// Fixed returns a Value that always resolves to v.
func Fixed[T, V any](v V) Value[T, V] {
	return Value[T, V]{kind: valueFixed, fixed: v}
}

// Func returns a Value computed from the context when the action plays.
// A nil fn yields an absent Value.
func Func[T, V any](fn func(T) V) Value[T, V] {
	if fn == nil {
		return Value[T, V]{}
	}
	return Value[T, V]{
		kind: valueFunc,
		fn: func(x T) (V, error) {
			return fn(x), nil
		},
	}
}

// FuncErr returns a Value computed from the context that may fail, e.g. when
// rendering a template from an external payload. A nil fn yields an absent
// Value.
func FuncErr[T, V any](fn func(T) (V, error)) Value[T, V] {
	if fn == nil {
		return Value[T, V]{}
	}
	return Value[T, V]{kind: valueFunc, fn: fn}
}

// HasValue reports whether the Value is set.
func (v Value[T, V]) HasValue() bool {
	return v.kind != valueAbsent
}

// IsFixed reports whether the Value is a constant.
func (v Value[T, V]) IsFixed() bool {
	return v.kind == valueFixed
}

// Resolve returns the value for context x. An absent Value resolves to the
// zero V; callers check HasValue first.
func (v Value[T, V]) Resolve(x T) (V, error) {
	switch v.kind {
	case valueFixed:
		return v.fixed, nil
	case valueFunc:
		return v.fn(x)
	default:
		var zero V
		return zero, nil
	}
}
