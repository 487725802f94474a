package catalog

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Filter selects and orders an event listing. The zero value lists the
// first page with server defaults.
type Filter struct {
	Search   string
	Category string
	Status   Status
	From     string // inclusive start date, YYYY-MM-DD
	To       string // inclusive end date, YYYY-MM-DD
	Tags     []string
	Sort     string
	Page     int
	Limit    int
}

// query encodes the filter as request parameters.
func (f Filter) query() url.Values {
	values := url.Values{}
	if s := strings.TrimSpace(f.Search); s != "" {
		values.Set("search", s)
	}
	if f.Category != "" {
		values.Set("category", f.Category)
	}
	if f.Status != "" {
		values.Set("status", string(f.Status))
	}
	if f.From != "" {
		values.Set("from", f.From)
	}
	if f.To != "" {
		values.Set("to", f.To)
	}
	for _, tag := range sortedTags(f.Tags) {
		values.Add("tags", tag)
	}
	if f.Sort != "" {
		values.Set("sort", f.Sort)
	}
	if f.Page > 0 {
		values.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		values.Set("limit", strconv.Itoa(f.Limit))
	}
	return values
}

// fingerprint is the canonical cache key for this filter set plus page.
// Tag order is normalized so equivalent filters share a slot, and each
// value is escaped so a value containing a separator cannot collide two
// distinct filters.
func (f Filter) fingerprint() string {
	tags := sortedTags(f.Tags)
	escapedTags := make([]string, len(tags))
	for i, tag := range tags {
		escapedTags[i] = url.QueryEscape(tag)
	}
	parts := []string{
		"search=" + url.QueryEscape(strings.TrimSpace(f.Search)),
		"category=" + url.QueryEscape(f.Category),
		"status=" + url.QueryEscape(string(f.Status)),
		"from=" + url.QueryEscape(f.From),
		"to=" + url.QueryEscape(f.To),
		"tags=" + strings.Join(escapedTags, ","),
		"sort=" + url.QueryEscape(f.Sort),
		"page=" + strconv.Itoa(f.Page),
		"limit=" + strconv.Itoa(f.Limit),
	}
	return strings.Join(parts, "&")
}

func sortedTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	sorted := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			sorted = append(sorted, trimmed)
		}
	}
	sort.Strings(sorted)
	return sorted
}
