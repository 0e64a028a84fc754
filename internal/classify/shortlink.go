package classify

import (
	"fmt"
	"strings"
)

// ShortLink builds the canonical short permalink from a listing permalink
// such as /r/aww/comments/8pr4gv/title/: the fifth slash-separated segment
// (counting the empty one before the leading slash) is the post id.
func ShortLink(domain, permalink string) (string, error) {
	parts := strings.Split(permalink, "/")
	if len(parts) < 5 || parts[4] == "" {
		return "", fmt.Errorf("permalink %q has no id segment", permalink)
	}
	return strings.TrimSuffix(domain, "/") + "/" + parts[4], nil
}
