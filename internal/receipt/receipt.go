package receipt

import "time"

// Receipt represents a processed receipt with extracted metadata
type Receipt struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Merchant string `json:"merchant"`
	// Date is the date text as printed on the receipt, when one was found
	Date string `json:"date"`
	// Total and Tax are nil when no amount could be read
	Total     *float64  `json:"total"`
	Tax       *float64  `json:"tax"`
	Items     []Item    `json:"items"`
	RawText   string    `json:"raw_text"`
	TripID    string    `json:"trip_id,omitempty"` // ID of the trip this receipt belongs to
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item is one purchased line captured from the receipt text
type Item struct {
	Line   string `json:"line"`
	Amount string `json:"amount"`
}

// Trip groups the receipts collected on one journey
type Trip struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
