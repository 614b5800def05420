package usecase

import (
	"strings"

	"houseshower/internal/domain/entity"
)

// ReservationFilter narrows the list by reservation status.
type ReservationFilter string

const (
	FilterAll       ReservationFilter = "all"
	FilterAvailable ReservationFilter = "available"
	FilterReserved  ReservationFilter = "reserved"
)

// ParseReservationFilter maps user input to a filter; anything unknown is all.
func ParseReservationFilter(s string) ReservationFilter {
	switch ReservationFilter(strings.ToLower(strings.TrimSpace(s))) {
	case FilterAvailable:
		return FilterAvailable
	case FilterReserved:
		return FilterReserved
	default:
		return FilterAll
	}
}

func (f ReservationFilter) matches(p *entity.Product) bool {
	switch f {
	case FilterAvailable:
		return !p.IsReserved
	case FilterReserved:
		return p.IsReserved
	default:
		return true
	}
}

// FilterProducts keeps the products whose title contains query
// (case-insensitive, whitespace included) and whose status matches filter,
// preserving order. Only the empty query matches everything.
func FilterProducts(products []*entity.Product, query string, filter ReservationFilter) []*entity.Product {
	needle := strings.ToLower(query)

	out := make([]*entity.Product, 0, len(products))
	for _, p := range products {
		if p == nil || !filter.matches(p) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Title), needle) {
			continue
		}
		out = append(out, p)
	}
	return out
}

type filterCache struct {
	version uint64
	query   string
	filter  ReservationFilter
	result  []*entity.Product
}

// Search filters the current list. The last result is reused while neither
// the list nor the inputs changed.
func (uc *ProductUseCase) Search(query string, filter ReservationFilter) []*entity.Product {
	uc.mu.RLock()
	if c := uc.view; c != nil && c.version == uc.version && c.query == query && c.filter == filter {
		result := cloneProducts(c.result)
		uc.mu.RUnlock()
		return result
	}
	version := uc.version
	result := FilterProducts(cloneProducts(uc.products), query, filter)
	uc.mu.RUnlock()

	uc.mu.Lock()
	if uc.version == version {
		uc.view = &filterCache{version: version, query: query, filter: filter, result: result}
	}
	uc.mu.Unlock()

	return cloneProducts(result)
}
