package model

import "time"

// CompanyToken is the non-fractional ownership unit for one company.
// One token, one current owner. While a token sits in market escrow the
// owner field still names the seller; Escrowed marks that the market
// holds it and blocks any transfer outside settlement.
type CompanyToken struct {
	ID             int64     `json:"id"`
	CompanyName    string    `json:"company_name"`
	MetadataURI    string    `json:"metadata_uri"`
	OwnerID        string    `json:"owner_id"`
	Escrowed       bool      `json:"escrowed"`
	MonthlyRevenue int64     `json:"monthly_revenue"`
	MonthlyProfit  int64     `json:"monthly_profit"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
