package geo

// CountryResolver maps a coordinate to a country label
type CountryResolver interface {
	ResolveCountry(p LatLng) string
}

// StaticResolver answers every lookup with the same label. It stands in until
// a point-in-polygon lookup against country boundaries exists.
type StaticResolver struct {
	Label string
}

// NewStaticResolver creates a resolver that always returns label
func NewStaticResolver(label string) *StaticResolver {
	return &StaticResolver{Label: label}
}

func (r *StaticResolver) ResolveCountry(_ LatLng) string {
	return r.Label
}

// ResolverFunc adapts a plain function to CountryResolver
type ResolverFunc func(p LatLng) string

func (f ResolverFunc) ResolveCountry(p LatLng) string {
	return f(p)
}
