package dashboard

import (
	"sync"
	"time"

	"github.com/loykin/botpanel/internal/logbuf"
)

// Element is the fixed logical name of a display element.
type Element string

const (
	ElementStatus           Element = "status"
	ElementLastPost         Element = "lastPost"
	ElementPostsToday       Element = "postsToday"
	ElementEngagementsToday Element = "engagementsToday"
	ElementContentPool      Element = "contentPool"
	ElementStartBot         Element = "startBot"
	ElementStopBot          Element = "stopBot"
	ElementManualPost       Element = "manualPost"
	ElementManualEngage     Element = "manualEngage"
	ElementLogContainer     Element = "logContainer"
	ElementAlert            Element = "alert"
)

// AllElements lists every element a complete panel carries.
var AllElements = []Element{
	ElementStatus, ElementLastPost, ElementPostsToday, ElementEngagementsToday, ElementContentPool,
	ElementStartBot, ElementStopBot, ElementManualPost, ElementManualEngage,
	ElementLogContainer, ElementAlert,
}

// Severity styles an alert.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Alert is a transient notification. At most one is visible at a time.
type Alert struct {
	ID       string    `json:"id"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	ShownAt  time.Time `json:"shown_at"`
}

// Surface is where the controller renders. Every method reports false when the
// target element does not exist; the controller then skips the update.
type Surface interface {
	SetText(el Element, text string) bool
	SetIndicator(el Element, class string) bool
	SetDisabled(el Element, disabled bool) bool
	SetLoading(el Element, loading bool) bool
	RenderLog(el Element, entries []logbuf.Entry) bool
	ShowAlert(el Element, a Alert) bool
	ClearAlert(el Element, id string) bool
}

// Widget is the rendered state of one element.
type Widget struct {
	Text      string `json:"text,omitempty"`
	Indicator string `json:"indicator,omitempty"`
	Disabled  bool   `json:"disabled,omitempty"`
	Loading   bool   `json:"loading,omitempty"`
}

// Snapshot is a copy of everything a Panel shows.
type Snapshot struct {
	Widgets map[Element]Widget `json:"widgets"`
	Log     []logbuf.Entry     `json:"log"`
	Alert   *Alert             `json:"alert,omitempty"`
}

// Widget returns the widget for el, or the zero Widget when absent.
func (s Snapshot) Widget(el Element) Widget { return s.Widgets[el] }

// Panel is the in-memory Surface. Front ends read it through Snapshot and
// repaint when the OnChange callback fires.
type Panel struct {
	mu       sync.RWMutex
	present  map[Element]bool
	widgets  map[Element]*Widget
	log      []logbuf.Entry
	alert    *Alert
	onChange func()
}

// NewPanel builds a panel carrying the given elements, or AllElements when none are given.
func NewPanel(elements ...Element) *Panel {
	if len(elements) == 0 {
		elements = AllElements
	}
	p := &Panel{present: make(map[Element]bool), widgets: make(map[Element]*Widget)}
	for _, el := range elements {
		p.present[el] = true
		p.widgets[el] = &Widget{}
	}
	return p
}

// OnChange registers fn to run after every mutation. fn runs without the panel lock held.
func (p *Panel) OnChange(fn func()) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Has reports whether el exists on the panel.
func (p *Panel) Has(el Element) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.present[el]
}

func (p *Panel) SetText(el Element, text string) bool {
	return p.mutate(el, func(w *Widget) { w.Text = text })
}

func (p *Panel) SetIndicator(el Element, class string) bool {
	return p.mutate(el, func(w *Widget) { w.Indicator = class })
}

// SetDisabled sets the enabled state. A loading widget stays disabled.
func (p *Panel) SetDisabled(el Element, disabled bool) bool {
	return p.mutate(el, func(w *Widget) { w.Disabled = disabled || w.Loading })
}

// SetLoading toggles the busy state. A loading widget is disabled; clearing it re-enables.
func (p *Panel) SetLoading(el Element, loading bool) bool {
	return p.mutate(el, func(w *Widget) {
		w.Loading = loading
		w.Disabled = loading
	})
}

func (p *Panel) RenderLog(el Element, entries []logbuf.Entry) bool {
	return p.update(el, func() {
		p.log = append(p.log[:0], entries...)
	})
}

// ShowAlert replaces whatever alert is displayed.
func (p *Panel) ShowAlert(el Element, a Alert) bool {
	return p.update(el, func() { p.alert = &a })
}

// ClearAlert removes the alert only if it is still the one identified by id.
func (p *Panel) ClearAlert(el Element, id string) bool {
	return p.update(el, func() {
		if p.alert != nil && p.alert.ID == id {
			p.alert = nil
		}
	})
}

// Snapshot copies the current panel state.
func (p *Panel) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := Snapshot{
		Widgets: make(map[Element]Widget, len(p.widgets)),
		Log:     append([]logbuf.Entry(nil), p.log...),
	}
	for el, w := range p.widgets {
		s.Widgets[el] = *w
	}
	if p.alert != nil {
		a := *p.alert
		s.Alert = &a
	}
	return s
}

func (p *Panel) mutate(el Element, fn func(*Widget)) bool {
	return p.update(el, func() { fn(p.widgets[el]) })
}

func (p *Panel) update(el Element, fn func()) bool {
	p.mu.Lock()
	if !p.present[el] {
		p.mu.Unlock()
		return false
	}
	fn()
	onChange := p.onChange
	p.mu.Unlock()
	if onChange != nil {
		onChange()
	}
	return true
}
