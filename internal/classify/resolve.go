package classify

import (
	"net/url"
	"path"
	"slices"
	"strings"
)

const directSuffix = ".jpg"

// Resolver rewrites share-page links on link-aggregator hosts into direct
// file URLs on the media host.
type Resolver struct {
	AggregatorHosts []string
	DirectHost      string
}

// IsAggregator reports whether raw points at a share page host.
func (r Resolver) IsAggregator(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range r.AggregatorHosts {
		if host == strings.ToLower(h) {
			return true
		}
	}
	return false
}

// Resolve returns a directly retrievable media URL for raw. URLs whose path
// already ends in .jpg and non-aggregator URLs come back unchanged. An
// identifier that carries another image extension keeps it.
func (r Resolver) Resolve(raw string) string {
	if !r.IsAggregator(raw) {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if strings.HasSuffix(strings.ToLower(u.Path), directSuffix) {
		return raw
	}
	id := lastSegment(u.Path)
	if id == "" {
		return raw
	}
	if slices.Contains(imageExtensions, strings.ToLower(path.Ext(id))) {
		return "https://" + r.DirectHost + "/" + id
	}
	return "https://" + r.DirectHost + "/" + id + directSuffix
}

func lastSegment(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	return parts[len(parts)-1]
}
