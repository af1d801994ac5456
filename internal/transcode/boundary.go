package transcode

import "fmt"

// boundary runs a call into go-astiav's decode/resample/encode path and
// converts a panic from the C ABI into a normal error — the same checked-
// boundary pattern internal/media uses, kept as its own copy here because
// internal/transcode's failure mode maps to apperr.KindTranscodeFail
// specifically rather than internal/media's broader taxonomy.
func boundary(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transcode: library call panicked: %v", r)
		}
	}()
	return fn()
}
