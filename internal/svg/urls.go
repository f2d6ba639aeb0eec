package svg

import (
	"regexp"
	"sort"
)

// Only absolute http(s) and ipfs targets are inlined. The submatch groups are
// the URL itself, excluding quotes and parentheses.
var (
	hrefPattern   = regexp.MustCompile(`(?i)href=(?:"((?:https?|ipfs)://[^\r\n]+?)"|'((?:https?|ipfs)://[^\r\n]+?)')`)
	cssURLPattern = regexp.MustCompile(`(?i)url\(\s*(?:"((?:https?|ipfs)://[^\r\n]+?)"|'((?:https?|ipfs)://[^\r\n]+?)'|((?:https?|ipfs)://[^\r\n]+?))\s*\)`)
)

// Occurrences maps each distinct referenced URL to the ascending byte offsets
// at which it appears.
type Occurrences map[string][]int

// CollectURLs scans svg for href attribute values and CSS url() values.
func CollectURLs(svg string) Occurrences {
	result := Occurrences{}
	for _, pattern := range []*regexp.Regexp{hrefPattern, cssURLPattern} {
		for _, match := range pattern.FindAllStringSubmatchIndex(svg, -1) {
			// exactly one of the alternative groups participates
			for g := 2; g+1 < len(match); g += 2 {
				start, end := match[g], match[g+1]
				if start < 0 {
					continue
				}
				url := svg[start:end]
				result[url] = append(result[url], start)
				break
			}
		}
	}

	for _, offsets := range result {
		sort.Ints(offsets)
	}
	return result
}

// URLs returns the distinct URLs ordered by first appearance.
func (o Occurrences) URLs() []string {
	urls := make([]string, 0, len(o))
	for url := range o {
		urls = append(urls, url)
	}
	sort.Slice(urls, func(i, j int) bool {
		return o[urls[i]][0] < o[urls[j]][0]
	})
	return urls
}
