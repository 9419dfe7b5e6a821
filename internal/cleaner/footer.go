package cleaner

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/dgallion1/docstruct/internal/docmodel"
)

// Boilerplate that is noise regardless of position: bare page numbers,
// copyright lines, separator rules.
var staticNoiseRes = []*regexp.Regexp{
	regexp.MustCompile(`^\d+\s*$`),
	regexp.MustCompile(`(?i)^\d*\s*(©|\(c\))\s*\d{4}`),
	regexp.MustCompile(`(?i)copyright\s*(©|\(c\))?\s*\d{4}`),
	regexp.MustCompile(`(?i)all rights reserved`),
	regexp.MustCompile(`^[-=_.]{3,}$`),
	regexp.MustCompile(`(?i)^page \d+( of \d+)?$`),
}

const (
	sigMaxLen      = 60   // signatures are short lines only
	sigMarginRatio = 0.15 // top/bottom page band considered header/footer
	sigMinPages    = 3    // must repeat on at least this many pages
)

// SignatureCache detects repeating header/footer lines. It is rebuilt from
// the full node stream of a document before any lookup, and lookups are safe
// for concurrent readers.
type SignatureCache struct {
	mu   sync.RWMutex
	sigs map[string]bool
}

func NewSignatureCache() *SignatureCache {
	return &SignatureCache{sigs: make(map[string]bool)}
}

// Rebuild scans the node stream and records normalized short lines that
// appear inside the top or bottom page margin on several distinct pages.
// Page height is estimated per page from the lowest bounding box.
func (c *SignatureCache) Rebuild(nodes []docmodel.RawNode) {
	pageBottom := make(map[int]float64)
	for _, n := range nodes {
		if n.BBox.Bottom > pageBottom[n.Page] {
			pageBottom[n.Page] = n.BBox.Bottom
		}
	}

	pages := make(map[string]map[int]bool)
	for _, n := range nodes {
		sig := normalizeSignature(n.Text)
		if sig == "" {
			continue
		}
		bottom := pageBottom[n.Page]
		if bottom <= 0 {
			continue
		}
		margin := bottom * sigMarginRatio
		if n.BBox.Top > margin && n.BBox.Bottom < bottom-margin {
			continue // body region
		}
		if pages[sig] == nil {
			pages[sig] = make(map[int]bool)
		}
		pages[sig][n.Page] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sigs = make(map[string]bool)
	for sig, onPages := range pages {
		if len(onPages) >= sigMinPages {
			c.sigs[sig] = true
		}
	}
}

// IsNoise reports whether text matches a static boilerplate pattern or a
// learned repeating header/footer signature.
func (c *SignatureCache) IsNoise(text string) bool {
	text = strings.TrimSpace(text)
	for _, re := range staticNoiseRes {
		if re.MatchString(text) {
			return true
		}
	}
	sig := normalizeSignature(text)
	if sig == "" {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sigs[sig]
}

// normalizeSignature collapses digits so "Page 3" and "Page 17" share one
// signature. Long lines never form signatures.
func normalizeSignature(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > sigMaxLen {
		return ""
	}
	var sb strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsDigit(r):
			sb.WriteByte('#')
		case unicode.IsSpace(r):
			// skip
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
