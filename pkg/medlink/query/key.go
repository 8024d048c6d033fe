package query

import (
	"strconv"
	"strings"
)

// Resources the client reads
const (
	ResourceDoctors         = "doctors"
	ResourceSpecializations = "specializations"
	ResourceAppointments    = "appointments"
)

// Key identifies a cached read: the resource, its ordered filter values and
// the page. Two reads with equal keys share one cache entry.
type Key struct {
	Resource string
	Filters  []string
	Page     int
}

// NewKey builds a Key
func NewKey(resource string, page int, filters ...string) Key {
	return Key{Resource: resource, Filters: filters, Page: page}
}

// String returns the canonical form of the key
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(strconv.Quote(k.Resource))
	for _, f := range k.Filters {
		b.WriteByte('|')
		b.WriteString(strconv.Quote(f))
	}
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(k.Page))
	return b.String()
}
