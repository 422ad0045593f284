package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Duration is a time.Duration that serializes as its string form, e.g. "72h0m0s".
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string such as \"72h\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Product describes a kind of stocked good.
type Product struct {
	ID                             *int64    `json:"id"`
	Title                          *string   `json:"title"`
	ScannerID                      *string   `json:"scannerId"`
	UsualDurationFromBuyTillExpire *Duration `json:"usualDurationFromBuyTillExpire"`
	ExpireMeansBad                 *bool     `json:"expireMeansBad"`
	Y                              *string   `json:"y"`
	H                              *string   `json:"h"`
}

func (p *Product) Validate() error {
	if p.Title == nil || strings.TrimSpace(*p.Title) == "" {
		return required("product", "title")
	}
	if p.ScannerID == nil {
		return required("product", "scannerId")
	}
	if p.UsualDurationFromBuyTillExpire == nil {
		return required("product", "usualDurationFromBuyTillExpire")
	}
	return nil
}

// Stock is one stored unit of a Product.
type Stock struct {
	ID                        *int64     `json:"id"`
	AddedTimestamp            *time.Time `json:"addedTimestamp"`
	StorageLocation           *string    `json:"storageLocation"`
	CalculatedExpiryTimestamp *time.Time `json:"calculatedExpiryTimestamp"`
	ManualSetExpiryTimestamp  *time.Time `json:"manualSetExpiryTimestamp"`
	Product                   *Ref       `json:"product"`
}

func (s *Stock) Validate() error {
	if s.AddedTimestamp == nil {
		return required("stock", "addedTimestamp")
	}
	if s.CalculatedExpiryTimestamp == nil {
		return required("stock", "calculatedExpiryTimestamp")
	}
	if s.Product == nil {
		return required("stock", "product")
	}
	return nil
}
