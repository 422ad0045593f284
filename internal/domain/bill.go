package domain

import (
	"strings"
	"time"
)

// Bill belongs to a Project and is closed once its positions are final.
type Bill struct {
	ID              *int64     `json:"id"`
	Title           *string    `json:"title"`
	ClosedTimestamp *time.Time `json:"closedTimestamp"`
	FinalAmount     *float64   `json:"finalAmount"`
	Project         *Ref       `json:"project"`
}

func (b *Bill) Validate() error {
	if b.Title == nil || strings.TrimSpace(*b.Title) == "" {
		return required("bill", "title")
	}
	if b.Project == nil {
		return required("bill", "project")
	}
	return nil
}

// Closed reports whether the bill already has a final amount.
func (b *Bill) Closed() bool {
	return b.ClosedTimestamp != nil
}

// BillPosition is a single cost line of a Bill.
type BillPosition struct {
	ID    *int64   `json:"id"`
	Title *string  `json:"title"`
	Cost  *float64 `json:"cost"`
	Bill  *Ref     `json:"bill"`
}

func (p *BillPosition) Validate() error {
	if p.Title == nil || strings.TrimSpace(*p.Title) == "" {
		return required("billPosition", "title")
	}
	if p.Cost == nil {
		return required("billPosition", "cost")
	}
	if p.Bill == nil {
		return required("billPosition", "bill")
	}
	return nil
}

// Close sums the position costs into the bill's final amount.
func (b *Bill) Close(positions []BillPosition, at time.Time) {
	var total float64
	for _, p := range positions {
		if p.Cost != nil {
			total += *p.Cost
		}
	}
	closed := at.UTC()
	b.ClosedTimestamp = &closed
	b.FinalAmount = &total
}
