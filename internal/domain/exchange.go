package domain

// ExchangeID identifies one trading venue, optionally one account instance on
// that venue. It is used as a map key everywhere; equality is by value.
type ExchangeID struct {
	Name     string
	Instance string
}

func NewExchangeID(name, instance string) ExchangeID {
	return ExchangeID{Name: name, Instance: instance}
}

func (e ExchangeID) String() string {
	if e.Instance != "" {
		return e.Name + ":" + e.Instance
	}
	return e.Name
}

// Symbol is a venue-agnostic instrument identifier. Per-venue symbol
// translation is a venue operations concern.
type Symbol struct {
	Base     string
	Quote    string
	Contract string
}

func (s Symbol) String() string {
	return s.Base + "-" + s.Quote + "-" + s.Contract
}

const (
	ContractPerpetual = "PERP"
	ContractSpot      = "SPOT"
	ContractFuture    = "FUTURE"
)
