package socket

import (
	"hash/maphash"
	"net/url"
)

var addressHashSeed = maphash.MakeSeed()

// Address wraps a Connection's endpoint URL. Equality and hashing are
// defined by the URL's external string form (spec.md §3, §6), mirroring
// the original UrlSocketAddress's equals()/hashCode() pair.
type Address struct {
	url *url.URL
}

// NewAddress wraps u as an Address.
func NewAddress(u *url.URL) Address {
	return Address{url: u}
}

// String returns the external string form of the wrapped URL.
func (a Address) String() string {
	if a.url == nil {
		return ""
	}
	return a.url.String()
}

// Equal reports whether a and b have the same external string form.
func (a Address) Equal(b Address) bool {
	return a.String() == b.String()
}

// Hash returns a hash consistent with String(), suitable for keying maps
// or caches by endpoint.
func (a Address) Hash() uint64 {
	var h maphash.Hash
	h.SetSeed(addressHashSeed)
	h.WriteString(a.String())
	return h.Sum64()
}
