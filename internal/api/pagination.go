package api

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rpattn/projectledger/internal/criteria"
	"github.com/rpattn/projectledger/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 2000
)

// parsePage reads page and size. Size is clamped to maxPageSize and the
// resulting row offset must fit in an int.
func parsePage(q url.Values) (domain.PageRequest, error) {
	page := domain.PageRequest{Page: 0, Size: defaultPageSize}
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, &criteria.FilterError{Param: "page", Reason: fmt.Sprintf("%q is not a page number", raw)}
		}
		page.Page = n
	}
	if raw := q.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page, &criteria.FilterError{Param: "size", Reason: fmt.Sprintf("%q is not a page size", raw)}
		}
		page.Size = min(n, maxPageSize)
	}
	if page.Page > math.MaxInt/page.Size {
		return page, &criteria.FilterError{Param: "page", Reason: fmt.Sprintf("page %d is out of range", page.Page)}
	}
	return page, nil
}

// writePageHeaders sets X-Total-Count and an RFC 5988 Link header with the
// next, prev, last and first pages. Other query parameters are preserved.
func writePageHeaders(w http.ResponseWriter, r *http.Request, page domain.PageRequest, total int64) {
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))

	lastPage := 0
	if total > 0 {
		lastPage = int((total - 1) / int64(page.Size))
	}

	link := func(n int, rel string) string {
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(n))
		q.Set("size", strconv.Itoa(page.Size))
		u := url.URL{Path: r.URL.Path, RawQuery: q.Encode()}
		return fmt.Sprintf("<%s>; rel=%q", u.String(), rel)
	}

	var links []string
	if page.Page < lastPage {
		links = append(links, link(page.Page+1, "next"))
	}
	if page.Page > 0 {
		links = append(links, link(page.Page-1, "prev"))
	}
	links = append(links, link(lastPage, "last"), link(0, "first"))
	w.Header().Set("Link", strings.Join(links, ","))
}
