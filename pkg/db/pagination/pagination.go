package pagination

import "math"

// Pagination is bound from ?page=&limit= query strings.
type Pagination struct {
	Page  int `form:"page,default=1" json:"page"`
	Limit int `form:"limit,default=10" json:"limit"`
}

type PageInfo struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Normalize clamps page to >= 1 and limit to [1, maxLimit]. A non-positive
// maxLimit means MaxLimit. Page is capped so that Offset never overflows.
func (p Pagination) Normalize(maxLimit int) Pagination {
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultLimit
	case p.Limit > maxLimit:
		p.Limit = maxLimit
	}
	if last := math.MaxInt / p.Limit; p.Page > last {
		p.Page = last
	}
	return p
}

func (p Pagination) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

func (p Pagination) Info(total int64) PageInfo {
	return PageInfo{
		Total: total,
		Page:  p.Page,
		Limit: p.Limit,
		Pages: Pages(total, p.Limit),
	}
}

func Pages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
