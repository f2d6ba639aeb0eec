// Package svg inlines externally referenced resources into SVG documents so
// that they render without further network access.
package svg

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/nftgp/http-gateway/internal/metrics"
)

const MimeType = "image/svg+xml"

// Fetcher resolves one referenced URL into a data: URI.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type Result struct {
	Body     string
	Warnings []string
}

type Inliner struct {
	fetcher Fetcher
	metrics *metrics.Metrics
}

func NewInliner(fetcher Fetcher, m *metrics.Metrics) *Inliner {
	return &Inliner{
		fetcher: fetcher,
		metrics: m,
	}
}

type outcome struct {
	value string
	err   error
}

// Inline fetches every distinct referenced URL concurrently and splices the
// results into svg at their original offsets. A failed fetch leaves that URL
// untouched and adds a warning; it never fails the document.
func (in *Inliner) Inline(ctx context.Context, svg string) *Result {
	occurrences := CollectURLs(svg)
	if len(occurrences) == 0 {
		return &Result{Body: svg}
	}

	urls := occurrences.URLs()
	outcomes := make([]outcome, len(urls))

	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			value, err := in.fetcher.Fetch(ctx, url)
			outcomes[i] = outcome{value: value, err: err}
		}(i, url)
	}
	wg.Wait()

	values := make(map[string]string, len(urls))
	var warnings []string
	for i, url := range urls {
		o := outcomes[i]
		if o.err != nil {
			slog.Warn("Failed to inline linked resource", "url", url, "error", o.err)
			warnings = append(warnings, o.err.Error())
			continue
		}
		values[url] = o.value
	}

	in.metrics.ObserveInlined("ok", len(values))
	in.metrics.ObserveInlined("failed", len(warnings))

	return &Result{
		Body:     ReplaceSubstrings(svg, BuildReplacements(occurrences, values)),
		Warnings: warnings,
	}
}

// Replacement substitutes svg[Start:End] with Value.
type Replacement struct {
	Start int
	End   int
	Value string
}

// BuildReplacements flattens the occurrences of every resolved URL into one
// list sorted by Start. A span overlapping its predecessor is dropped.
func BuildReplacements(occurrences Occurrences, values map[string]string) []Replacement {
	var replacements []Replacement
	for url, offsets := range occurrences {
		value, ok := values[url]
		if !ok {
			continue
		}
		for _, offset := range offsets {
			replacements = append(replacements, Replacement{
				Start: offset,
				End:   offset + len(url),
				Value: value,
			})
		}
	}

	sort.Slice(replacements, func(i, j int) bool {
		return replacements[i].Start < replacements[j].Start
	})

	disjoint := replacements[:0]
	end := 0
	for _, r := range replacements {
		if r.Start < end {
			continue
		}
		disjoint = append(disjoint, r)
		end = r.End
	}
	return disjoint
}

// ReplaceSubstrings applies sorted, non-overlapping replacements in a single
// left-to-right pass over str.
func ReplaceSubstrings(str string, replacements []Replacement) string {
	size := len(str)
	for _, r := range replacements {
		size += len(r.Value) - (r.End - r.Start)
	}

	var b strings.Builder
	b.Grow(size)
	i := 0
	for _, r := range replacements {
		b.WriteString(str[i:r.Start])
		b.WriteString(r.Value)
		i = r.End
	}
	b.WriteString(str[i:])
	return b.String()
}
