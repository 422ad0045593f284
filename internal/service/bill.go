package service

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/rpattn/projectledger/internal/criteria"
	"github.com/rpattn/projectledger/internal/domain"
	"github.com/rpattn/projectledger/internal/persistence"
)

// BillService closes bills.
type BillService struct {
	runner    *persistence.Runner
	bills     *persistence.Coordinator[domain.Bill]
	positions *persistence.Coordinator[domain.BillPosition]
	now       func() time.Time
}

func NewBillService(
	runner *persistence.Runner,
	bills *persistence.Coordinator[domain.Bill],
	positions *persistence.Coordinator[domain.BillPosition],
) *BillService {
	return &BillService{runner: runner, bills: bills, positions: positions, now: time.Now}
}

// Close sums the costs of the bill's positions into its final amount and
// stamps the closing time. Closing again recomputes both.
func (s *BillService) Close(ctx context.Context, id int64) (domain.Bill, error) {
	var bill domain.Bill
	err := s.runner.Do(ctx, func(u *persistence.Unit) error {
		var err error
		if bill, err = s.bills.GetIn(u, id); err != nil {
			return err
		}
		positions, err := s.positionsOf(u, id)
		if err != nil {
			return err
		}
		bill.Close(positions, s.now())
		return s.bills.UpdateIn(u, &bill)
	})
	if err != nil {
		return domain.Bill{}, err
	}
	return bill, nil
}

func (s *BillService) positionsOf(u *persistence.Unit, billID int64) ([]domain.BillPosition, error) {
	spec, err := criteria.Parse(s.positions.Schema(), url.Values{
		"billId.equals": {strconv.FormatInt(billID, 10)},
	})
	if err != nil {
		return nil, err
	}
	page, err := s.positions.ListIn(u, spec, nil, domain.Unpaged())
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}
