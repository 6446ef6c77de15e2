package frame

import (
	"html"
	"sort"
	"strings"
)

// Render describes how the element must currently look
type Render struct {
	// ImgAttributes are the attributes of the inner <img>, style included
	ImgAttributes map[string]string
	// ImgStyle is the computed style, empty until the first computation
	ImgStyle string
	// HostStyle holds CSS properties for the host element
	HostStyle map[string]string
}

// Render returns the current render description
func (e *Element) Render() Render {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := Render{
		ImgAttributes: make(map[string]string),
		ImgStyle:      e.imgStyle,
		HostStyle:     make(map[string]string, len(e.hostStyle)),
	}
	for name, value := range e.attrs {
		if IsForwarded(name) {
			r.ImgAttributes[name] = value
		}
	}
	if e.imgStyle != "" {
		r.ImgAttributes[AttrStyle] = e.imgStyle
	}
	for k, v := range e.hostStyle {
		r.HostStyle[k] = v
	}
	return r
}

// ImgTag renders the inner <img> element as HTML
func (r Render) ImgTag() string {
	names := make([]string, 0, len(r.ImgAttributes))
	for name := range r.ImgAttributes {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("<img")
	for _, name := range names {
		b.WriteString(" ")
		b.WriteString(name)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(r.ImgAttributes[name]))
		b.WriteString(`"`)
	}
	b.WriteString(" />")
	return b.String()
}

// HostStyleString renders the host style as a CSS declaration list
func (r Render) HostStyleString() string {
	names := make([]string, 0, len(r.HostStyle))
	for name := range r.HostStyle {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+r.HostStyle[name]+";")
	}
	return strings.Join(parts, " ")
}
