package harness

import (
	"testing"

	"github.com/i5heu/GoDeadlineBench/internal/consume"
	"github.com/i5heu/GoDeadlineBench/internal/deadline"
	"github.com/i5heu/GoDeadlineBench/internal/driver"
)

// BenchmarkTimeout runs every strategy with b.N elements per trial, so ns/op
// is the cost of one element end to end.
func BenchmarkTimeout(b *testing.B) {
	deadline.RawMonotonic{}.Nanotime()

	for _, clockName := range []string{deadline.RuntimeName, deadline.RawName} {
		for _, s := range consume.Strategies() {
			b.Run(clockName+"/"+s.Name, func(b *testing.B) {
				rt := driver.MustRuntime(driver.Config{ClockName: clockName})
				if !s.Supports(rt.Clock()) {
					b.Skipf("%s needs the runtime clock", s.Name)
				}
				b.ReportAllocs()
				b.ResetTimer()
				rt.Run(s, uint64(b.N))
			})
		}
	}
}

// BenchmarkTimeoutWithSetup includes runtime construction in every trial.
func BenchmarkTimeoutWithSetup(b *testing.B) {
	for _, s := range consume.Strategies() {
		b.Run(s.Name, func(b *testing.B) {
			b.ReportAllocs()
			elapsed := IterCustom(s, uint64(b.N), Options{Mode: SetupIncluded})
			b.ReportMetric(float64(elapsed.Nanoseconds())/float64(b.N), "ns/elem")
		})
	}
}
