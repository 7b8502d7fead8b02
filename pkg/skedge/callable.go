package skedge

// Callable is the work attached to a job.
//
// Callables compare by identity: two values built from the same function
// and name are still distinct.
type Callable interface {
	Call() error
	Name() string
}

type funcCallable struct {
	name string
	fn   func() error
}

func (f *funcCallable) Call() error  { return f.fn() }
func (f *funcCallable) Name() string { return f.name }

// FuncErr wraps fn. An empty name becomes "job".
func FuncErr(name string, fn func() error) Callable {
	if name == "" {
		name = "job"
	}
	if fn == nil {
		fn = func() error { return nil }
	}
	return &funcCallable{name: name, fn: fn}
}

// Func wraps a function that cannot fail.
func Func(name string, fn func()) Callable {
	if fn == nil {
		return FuncErr(name, nil)
	}
	return FuncErr(name, func() error { fn(); return nil })
}

// Func1 binds one argument. The value is captured once and reused on every run.
func Func1[A any](name string, fn func(A), a A) Callable {
	return Func(name, func() { fn(a) })
}

func Func2[A, B any](name string, fn func(A, B), a A, b B) Callable {
	return Func(name, func() { fn(a, b) })
}

func Func3[A, B, C any](name string, fn func(A, B, C), a A, b B, c C) Callable {
	return Func(name, func() { fn(a, b, c) })
}

func Func4[A, B, C, D any](name string, fn func(A, B, C, D), a A, b B, c C, d D) Callable {
	return Func(name, func() { fn(a, b, c, d) })
}

func Func5[A, B, C, D, E any](name string, fn func(A, B, C, D, E), a A, b B, c C, d D, e E) Callable {
	return Func(name, func() { fn(a, b, c, d, e) })
}

func Func6[A, B, C, D, E, F any](name string, fn func(A, B, C, D, E, F), a A, b B, c C, d D, e E, f F) Callable {
	return Func(name, func() { fn(a, b, c, d, e, f) })
}
