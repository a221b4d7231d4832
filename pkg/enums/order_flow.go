package enums

import "slices"

// OrderFlow selects the direction goods move when an order is confirmed.
type OrderFlow string

const (
	// OrderFlowSupply brings goods in from a vendor; confirmation increments stock.
	OrderFlowSupply OrderFlow = "supply"
	// OrderFlowFulfillment ships goods out to a client; confirmation decrements stock.
	OrderFlowFulfillment OrderFlow = "fulfillment"
)

var validOrderFlows = []OrderFlow{OrderFlowSupply, OrderFlowFulfillment}

func (f OrderFlow) String() string {
	return string(f)
}

func (f OrderFlow) IsValid() bool {
	return slices.Contains(validOrderFlows, f)
}

// Sign returns +1 for supply and -1 for fulfillment.
func (f OrderFlow) Sign() int {
	if f == OrderFlowFulfillment {
		return -1
	}
	return 1
}

func ParseOrderFlow(value string) (OrderFlow, error) {
	return parse(value, validOrderFlows, "order flow")
}
