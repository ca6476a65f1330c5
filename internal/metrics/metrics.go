package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	Cycles            Counter
	CyclesSkipped     Counter
	OrdersPlaced      Counter
	OrdersFailed      Counter
	LegsTimedOut      Counter
	Rebalances        Counter
	SafetyEscalations Counter
	VenueErrors       Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		Cycles:            n,
		CyclesSkipped:     n,
		OrdersPlaced:      n,
		OrdersFailed:      n,
		LegsTimedOut:      n,
		Rebalances:        n,
		SafetyEscalations: n,
		VenueErrors:       n,
	}
}
