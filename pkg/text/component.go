// Package text carries the human-readable messages attached to connection
// decisions. The admission core treats these values as opaque handles; the
// proxy's formatting layer owns rendering.
package text

import "fmt"

// Component is an immutable piece of displayable text.
//
// The zero value is the empty message. Components are compared by content,
// so they are safe to use as map keys and in assertions.
type Component struct {
	content string
}

// Plain wraps a literal string in a Component.
func Plain(s string) Component {
	return Component{content: s}
}

// Plainf formats according to fmt rules and wraps the result.
func Plainf(format string, args ...any) Component {
	return Component{content: fmt.Sprintf(format, args...)}
}

// String returns the message content.
func (c Component) String() string {
	return c.content
}

// Empty reports whether the component carries no content.
func (c Component) Empty() bool {
	return c.content == ""
}
