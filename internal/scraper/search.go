package scraper

import (
	"fmt"
	"net/url"
	"strings"
)

// SearchURL builds the first results page for keyword, e.g.
// https://www.homedepot.com/s/cordless%20drill.
func SearchURL(baseURL, keyword string) (string, error) {
	keyword = strings.Join(strings.Fields(keyword), " ")
	if keyword == "" {
		return "", ErrEmptyKeyword
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBase, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidBase, baseURL)
	}

	return strings.TrimRight(base.Scheme+"://"+base.Host+base.Path, "/") + "/s/" + url.PathEscape(keyword), nil
}
