package frame

// Attribute names with a meaning for the element itself
const (
	AttrImageRegions  = "image-regions"
	AttrImageRegionID = "image-region-id"
	AttrDebug         = "debug"
	AttrID            = "id"
	AttrWidth         = "width"
	AttrHeight        = "height"
	AttrSrcset        = "srcset"
	AttrStyle         = "style"
)

// ForwardedAttributes are passed down to the inner <img> unmodified: the
// <img> specific attributes plus the relevant global ones. width=, height=
// and style= are deliberately absent, they apply to the host element.
var ForwardedAttributes = []string{
	// <img>
	"alt",
	"crossorigin",
	"decoding",
	"fetchpriority",
	"ismap",
	"loading",
	"referrerpolicy",
	"sizes",
	"src",
	"srcset",
	"usemap",
	// global
	"class",
	"contextmenu",
	"dir",
	"enterkeyhint",
	"hidden",
	"inert",
	"is",
	"itemid",
	"itemprop",
	"itemref",
	"itemscope",
	"itemtype",
	"lang",
	"nonce",
	"part",
	"role",
	"spellcheck",
	"tabindex",
	"title",
	"translate",
}

var forwarded = func() map[string]bool {
	m := make(map[string]bool, len(ForwardedAttributes))
	for _, name := range ForwardedAttributes {
		m[name] = true
	}
	return m
}()

// IsForwarded reports whether an attribute is passed to the inner <img>
func IsForwarded(name string) bool {
	return forwarded[name]
}
