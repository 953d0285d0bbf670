package models

import "time"

// TransactionType is the closed set of transaction kinds the engine understands.
// Rows that fall outside it are classified IGNORED by the parser and filtered
// before they reach the ledger.
type TransactionType string

const (
	TxBuy      TransactionType = "BUY"
	TxSell     TransactionType = "SELL"
	TxDividend TransactionType = "DIVIDEND"
	TxMerger   TransactionType = "MERGER"
	TxTransfer TransactionType = "TRANSFER"
	TxIgnored  TransactionType = "IGNORED"
)

// Merger sub-types. A MERGER/STOCK row converts share positions, a MERGER/CASH
// row delivers a cash consideration.
const (
	SubTypeMergerStock = "STOCK"
	SubTypeMergerCash  = "CASH"
)

// CanonicalTransaction is the unified, intermediate representation of a
// statement row. Each parser populates as many fields as possible directly
// from the source file, including the initial classification.
type CanonicalTransaction struct {
	Source             string          `json:"source"`
	TransactionDate    time.Time       `json:"transaction_date"`
	Ticker             string          `json:"ticker"`
	Quantity           float64         `json:"quantity"`
	Price              float64         `json:"price"`        // per unit, original currency
	TotalAmount        float64         `json:"total_amount"` // original currency
	Currency           string          `json:"currency"`
	FXRateToEUR        float64         `json:"fx_rate_to_eur"` // 0 when the statement carries none
	TransactionType    TransactionType `json:"transaction_type"`
	TransactionSubType string          `json:"transaction_sub_type"`
	RawText            string          `json:"raw_text"`
	RowRef             int             `json:"row_ref"` // line number in the source file
}

// Transaction is a validated, EUR-denominated event ready for the engine.
type Transaction struct {
	ID          int64           `json:"id,omitempty"`
	Date        time.Time       `json:"date"`
	Ticker      string          `json:"ticker"`
	Type        TransactionType `json:"type"`
	SubType     string          `json:"sub_type,omitempty"`
	Quantity    float64         `json:"quantity"`
	PriceEUR    float64         `json:"price_eur"`
	AmountEUR   float64         `json:"amount_eur"`
	Currency    string          `json:"currency"`
	FXRateToEUR float64         `json:"fx_rate_to_eur"`
	Source      string          `json:"source"`
	RawText     string          `json:"raw_text,omitempty"`
	RowRef      int             `json:"row_ref"`
	HashID      string          `json:"hash_id"`
}

// RejectedTransaction records a row the normalizer refused, with enough
// identity for the user to fix the source file.
type RejectedTransaction struct {
	Date   time.Time `json:"date"`
	Ticker string    `json:"ticker"`
	Source string    `json:"source"`
	RowRef int       `json:"row_ref"`
	Reason string    `json:"reason"`
}
