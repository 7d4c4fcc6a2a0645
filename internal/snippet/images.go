package snippet

import (
	"strings"

	"golang.org/x/net/html"
)

// ImageURLs extracts the src attribute values of all <img> tags in src.
// Internal whitespace is stripped from each URL, duplicates are removed,
// and first-seen order is preserved.
func ImageURLs(src string) []string {
	var urls []string
	seen := make(map[string]struct{})

	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return urls
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		if string(name) != "img" || !hasAttr {
			continue
		}
		for {
			key, val, more := z.TagAttr()
			if string(key) == "src" {
				url := strings.Join(strings.Fields(string(val)), "")
				if url != "" {
					if _, dup := seen[url]; !dup {
						seen[url] = struct{}{}
						urls = append(urls, url)
					}
				}
			}
			if !more {
				break
			}
		}
	}
}
