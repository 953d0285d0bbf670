package model

import (
	"database/sql"
	"time"

	"github.com/username/cgtfolio/src/models"
	"github.com/username/cgtfolio/src/utils"
)

// GetTickerInfo loads classification metadata for a ticker. Returns
// (nil, nil) when the ticker has never been classified.
func GetTickerInfo(db *sql.DB, ticker string) (*models.TickerInfo, error) {
	query := `
	SELECT ticker, asset_class, currency, active, delisted_on, merged_into, conversion_ratio, withholding_deducted, domicile
	FROM ticker_info
	WHERE ticker = ?`

	row := db.QueryRow(query, ticker)
	var (
		info       models.TickerInfo
		class      string
		delistedOn sql.NullString
		mergedInto sql.NullString
		ratio      sql.NullFloat64
		currency   sql.NullString
		domicile   sql.NullString
	)
	err := row.Scan(&info.Ticker, &class, &currency, &info.Active, &delistedOn, &mergedInto, &ratio, &info.WithholdingDeducted, &domicile)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	info.Class = models.AssetClass(class)
	info.Currency = currency.String
	info.MergedInto = mergedInto.String
	info.ConversionRatio = ratio.Float64
	info.Domicile = domicile.String
	if delistedOn.Valid && delistedOn.String != "" {
		if date, err := time.Parse(utils.DefaultDateFormat, delistedOn.String); err == nil {
			info.DelistedOn = &date
		}
	}
	return &info, nil
}

// UpsertTickerInfo stores or refreshes classification metadata.
func UpsertTickerInfo(db *sql.DB, info *models.TickerInfo) error {
	query := `
	INSERT INTO ticker_info (ticker, asset_class, currency, active, delisted_on, merged_into, conversion_ratio, withholding_deducted, domicile, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(ticker) DO UPDATE SET
		asset_class = excluded.asset_class,
		currency = excluded.currency,
		active = excluded.active,
		delisted_on = excluded.delisted_on,
		merged_into = excluded.merged_into,
		conversion_ratio = excluded.conversion_ratio,
		withholding_deducted = excluded.withholding_deducted,
		domicile = excluded.domicile,
		updated_at = excluded.updated_at`

	var delistedOn interface{}
	if info.DelistedOn != nil {
		delistedOn = info.DelistedOn.Format(utils.DefaultDateFormat)
	}
	_, err := db.Exec(query,
		info.Ticker,
		string(info.Class),
		info.Currency,
		info.Active,
		delistedOn,
		info.MergedInto,
		info.ConversionRatio,
		info.WithholdingDeducted,
		info.Domicile,
		time.Now(),
	)
	return err
}
