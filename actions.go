package snag

import (
	"strings"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/charliek/snag/buffer"
	"github.com/charliek/snag/report"
)

// Element is the minimal view of a UI element the action recorder needs.
// Host UI layers implement it over their own widget or node types; HTML
// hosts can wrap parsed nodes with NewHTMLElement.
type Element interface {
	Tag() string
	ID() string
	Classes() []string
	Parent() Element
}

// unknownTarget is recorded when no descriptor can be derived.
const unknownTarget = "unknown"

// maxDescriptorDepth bounds the ancestor walk when building a descriptor.
const maxDescriptorDepth = 3

// ActionRecorder records user interactions reported by the host UI layer.
// Element references are used synchronously to derive a descriptor and are
// never retained. Calls after Teardown are no-ops.
type ActionRecorder struct {
	buf     *buffer.Buffer[report.UserAction]
	active  *atomic.Bool
	enabled bool
}

func newActionRecorder(buf *buffer.Buffer[report.UserAction], active *atomic.Bool, enabled bool) *ActionRecorder {
	return &ActionRecorder{buf: buf, active: active, enabled: enabled}
}

// Click records a click-style activation of el.
func (r *ActionRecorder) Click(el Element) {
	r.record(report.ActionClick, el)
}

// Change records a value change on el.
func (r *ActionRecorder) Change(el Element) {
	r.record(report.ActionChange, el)
}

// Submit records a form-style submission rooted at el.
func (r *ActionRecorder) Submit(el Element) {
	r.record(report.ActionSubmit, el)
}

func (r *ActionRecorder) record(kind report.ActionKind, el Element) {
	if r == nil || !r.enabled || !r.active.Load() {
		return
	}
	r.buf.Append(report.UserAction{
		Action:    kind,
		Target:    Descriptor(el),
		Timestamp: report.Now(),
	})
}

// Descriptor derives a compact CSS-selector-like label for an element: the
// #id shortcut when the element has one, otherwise up to three ancestry
// levels below body rendered as tag.class1.class2 and joined outermost
// first with " > ". A nil element or a panicking Element implementation
// yields "unknown"; recording must never disturb the host.
func Descriptor(el Element) (out string) {
	defer func() {
		if recover() != nil {
			out = unknownTarget
		}
	}()

	if el == nil {
		return unknownTarget
	}

	if id := el.ID(); id != "" {
		return "#" + id
	}

	var segments []string
	for cur := el; cur != nil && len(segments) < maxDescriptorDepth; cur = cur.Parent() {
		tag := strings.ToLower(cur.Tag())
		if tag == "body" || tag == "html" {
			break
		}
		segments = append(segments, describeElement(cur, tag))
	}

	// Outermost ancestor first.
	var b strings.Builder
	for i := len(segments) - 1; i >= 0; i-- {
		if b.Len() > 0 {
			b.WriteString(" > ")
		}
		b.WriteString(segments[i])
	}
	return b.String()
}

// describeElement renders one ancestry level: the lowercased tag plus at
// most the first two class names.
func describeElement(el Element, tag string) string {
	var b strings.Builder
	b.WriteString(tag)
	n := 0
	for _, class := range el.Classes() {
		if class == "" {
			continue
		}
		b.WriteByte('.')
		b.WriteString(class)
		if n++; n == 2 {
			break
		}
	}
	return b.String()
}

// HTMLElement adapts a parsed HTML node to the Element interface so hosts
// with a real DOM can report nodes directly.
type HTMLElement struct {
	node *html.Node
}

// NewHTMLElement wraps an HTML node. Non-element nodes are usable but
// describe themselves with an empty tag.
func NewHTMLElement(n *html.Node) *HTMLElement {
	return &HTMLElement{node: n}
}

func (e *HTMLElement) Tag() string {
	if e == nil || e.node == nil {
		return ""
	}
	return e.node.Data
}

func (e *HTMLElement) ID() string {
	return e.attr("id")
}

func (e *HTMLElement) Classes() []string {
	return strings.Fields(e.attr("class"))
}

func (e *HTMLElement) Parent() Element {
	if e == nil || e.node == nil {
		return nil
	}
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return &HTMLElement{node: p}
		}
	}
	return nil
}

func (e *HTMLElement) attr(name string) string {
	if e == nil || e.node == nil {
		return ""
	}
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
