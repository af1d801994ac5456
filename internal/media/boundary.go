package media

import "fmt"

// boundary runs a call into the underlying C library and converts a panic
// (the non-ergonomic C ABI's way of surfacing a fatal condition through
// cgo bindings) into a normal error, per spec §9's "checked boundary"
// design note. It never lets a library-originated panic cross into caller
// goroutines uncaught.
func boundary(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("media: library call panicked: %v", r)
		}
	}()
	return fn()
}
