package atomicfloat

import (
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFloat64(t *testing.T) {
	Convey("When multiple writers Add to the same Float64 concurrently", t, func() {
		f := New(0.0)
		numOps := 3000
		numWriters := 8

		wg := sync.WaitGroup{}
		wg.Add(numWriters)
		adder := func() {
			defer wg.Done()
			for i := 0; i < numOps; i++ {
				f.Add(1.0)
			}
		}

		for i := 0; i < numWriters; i++ {
			go adder()
		}
		wg.Wait()

		So(f.Read(), ShouldEqual, float64(numOps*numWriters))
	})

	Convey("When Set is called with no concurrent writer", t, func() {
		f := New(1.0)
		So(f.Set(2.0), ShouldBeTrue)
		So(f.Read(), ShouldEqual, 2.0)
	})
}
