package querybuilder

// maxPageNumber keeps OFFSET arithmetic far from overflow.
const maxPageNumber = 1_000_000

// Bounds constrains the page size a caller may request.
type Bounds struct {
	Min     int
	Max     int
	Default int
}

// DefaultBounds allows between 5 and 50 rows per page.
var DefaultBounds = Bounds{Min: 5, Max: 50, Default: 20}

// Page is a clamped page number and size.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"page_size"`
}

// Clamp normalises a requested page and size: page >= 1, size within [Min, Max].
// A size of zero or less selects the default size.
func Clamp(page, size int, bounds Bounds) Page {
	b := bounds.normalised()
	if page < 1 {
		page = 1
	}
	if page > maxPageNumber {
		page = maxPageNumber
	}
	if size <= 0 {
		size = b.Default
	}
	if size < b.Min {
		size = b.Min
	}
	if size > b.Max {
		size = b.Max
	}
	return Page{Number: page, Size: size}
}

// Offset returns the number of rows preceding the page.
func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// TotalPages returns how many pages total rows span; at least one.
func (p Page) TotalPages(total int64) int {
	if p.Size <= 0 || total <= 0 {
		return 1
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}

func (b Bounds) normalised() Bounds {
	if b.Min <= 0 {
		b.Min = DefaultBounds.Min
	}
	if b.Max < b.Min {
		b.Max = b.Min
	}
	if b.Default < b.Min || b.Default > b.Max {
		b.Default = b.Min
		if DefaultBounds.Default >= b.Min && DefaultBounds.Default <= b.Max {
			b.Default = DefaultBounds.Default
		}
	}
	return b
}
