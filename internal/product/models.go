package product

// Dimensions describes a product's box size in centimeters.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Sum returns the sum of all three dimensions.
func (d Dimensions) Sum() float64 {
	return d.Length + d.Width + d.Height
}

// Volume returns length*width*height in cubic centimeters.
func (d Dimensions) Volume() float64 {
	return d.Length * d.Width * d.Height
}

// LongestSide returns the largest single dimension.
func (d Dimensions) LongestSide() float64 {
	longest := d.Length
	if d.Width > longest {
		longest = d.Width
	}
	if d.Height > longest {
		longest = d.Height
	}
	return longest
}

// Product is a single catalog listing.
type Product struct {
	ID                 string            `json:"id"`
	Title              string            `json:"title"`
	Category           string            `json:"category"`
	Price              float64           `json:"price"`
	MinPrice           float64           `json:"min_price"`
	Stock              int               `json:"stock"`
	Weight             float64           `json:"weight"`
	Dimensions         Dimensions        `json:"dimensions"`
	Description        string            `json:"description"`
	Characteristics    map[string]string `json:"characteristics"`
	Warranty           string            `json:"warranty"`
	QualityNotes       string            `json:"quality_notes"`
	BargainingAllowed  bool              `json:"bargaining_allowed"`
	MaxDiscountPercent float64           `json:"max_discount_percent"`
	MeetingLocations   []string          `json:"meeting_locations"`
}

// IsAvailable reports whether the product is in stock.
func (p *Product) IsAvailable() bool {
	return p.Stock > 0
}

// CanBargain reports whether price negotiation is open for this listing.
func (p *Product) CanBargain() bool {
	return p.BargainingAllowed && p.MaxDiscountPercent > 0
}

// MinAcceptablePrice returns the lowest price the seller will take,
// derived from the maximum discount but never below the hard floor.
func (p *Product) MinAcceptablePrice() float64 {
	discounted := p.Price - p.Price*(p.MaxDiscountPercent/100)
	if discounted < p.MinPrice {
		return p.MinPrice
	}
	return discounted
}

// IsPriceAcceptable reports whether the offered price clears the floor.
func (p *Product) IsPriceAcceptable(offered float64) bool {
	return offered >= p.MinAcceptablePrice()
}

// CounterOffer returns the midpoint between the offer and the list price,
// floored at the minimum acceptable price. Returns the offer itself when
// it is already acceptable.
func (p *Product) CounterOffer(offered float64) float64 {
	if p.IsPriceAcceptable(offered) {
		return offered
	}
	counter := (offered + p.Price) / 2
	if floor := p.MinAcceptablePrice(); counter < floor {
		return floor
	}
	return counter
}

// StockStatus is the result of a stock lookup.
type StockStatus struct {
	ProductID  string `json:"product_id"`
	Available  bool   `json:"available"`
	Quantity   int    `json:"quantity"`
	CanReserve bool   `json:"can_reserve"`
}
