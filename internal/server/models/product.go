package models

import "time"

// Product is a listing owned by exactly one seller account.
type Product struct {
	ID          string
	SellerID    string
	Name        string
	Breed       string
	Category    string
	Description string
	Price       float64
	Quantity    int
	Age         string
	Gender      string
	PhotoURLs   []string
	VideoURL    string
	CreatedAt   time.Time
}
