package cache

// Keyer derives cache keys for pipeline results.
type Keyer interface {
	// LayoutKey returns the key of a layout response for the document with
	// the given hash, computed with opts.
	LayoutKey(docHash string, opts LayoutKeyOpts) string
}

// LayoutKeyOpts holds every input besides the document that changes a
// layout response.
type LayoutKeyOpts struct {
	Engine  string  `json:"engine"`
	NodeSep float64 `json:"nodesep"`
	RankSep float64 `json:"ranksep"`
}

// DefaultKeyer produces "layout:<sha256>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// LayoutKey implements [Keyer].
func (k *DefaultKeyer) LayoutKey(docHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", docHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
