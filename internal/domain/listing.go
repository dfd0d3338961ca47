package domain

// Listing is a single active auction fetched from the marketplace. It lives
// for one polling cycle only.
type Listing struct {
	ID            int64
	Name          string
	Model         string
	Backdrop      string
	CurrentBid    float64
	EndTime       string // marketplace timestamp, already display-formatted
	DisplayNumber int64  // deep-link number, 0 when absent
}

// FloorKey is the name_model aggregation key used for floor-price lookups.
// The floor is reported per name+model pair, not per listing.
func (l Listing) FloorKey() string {
	return l.Name + "_" + l.Model
}

// FloorQuote is the marketplace's reported minimum price for a name+model
// pairing. Found is false when the marketplace has no statistics for the key.
type FloorQuote struct {
	Price float64
	Found bool
}

// ProfitSignal is the outcome of evaluating a listing against a floor quote.
// It exists only to gate and render a notification.
type ProfitSignal struct {
	Bid     float64
	Floor   float64
	Profit  float64 // TON, after marketplace markup and sale commission
	Percent float64 // relative to the bid; -100 when the bid is zero
}

// Marketplace fee model: a buyer pays the floor plus a 6% markup, and a
// reseller keeps 90% of the sale after commission.
const (
	floorMarkup    = 1.06
	saleCommission = 0.9
)

// ComputeProfit evaluates winning an auction at bid and reselling at the
// floor. A zero or negative bid yields -100 percent so such listings never
// clear a profit threshold.
func ComputeProfit(bid, floor float64) ProfitSignal {
	profit := floor*floorMarkup*saleCommission - bid
	percent := -100.0
	if bid > 0 {
		percent = profit / bid * 100
	}
	return ProfitSignal{
		Bid:     bid,
		Floor:   floor,
		Profit:  profit,
		Percent: percent,
	}
}
