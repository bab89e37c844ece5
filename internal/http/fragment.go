package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Fragment is an HTML response for htmx: a status, a body and the events
// announced to the page through HX-Trigger.
type Fragment struct {
	status int
	html   string
	events map[string]any
}

// NewFragment returns an empty 200 fragment.
func NewFragment() *Fragment {
	return &Fragment{status: http.StatusOK}
}

func (f *Fragment) Status(code int) *Fragment {
	f.status = code
	return f
}

// Trigger announces event with detail once the fragment is swapped in.
func (f *Fragment) Trigger(event string, detail any) *Fragment {
	if f.events == nil {
		f.events = map[string]any{}
	}
	f.events[event] = detail
	return f
}

func (f *Fragment) HTML(html string) *Fragment {
	f.html = html
	return f
}

// Write sends the fragment. Events that cannot be encoded are dropped.
func (f *Fragment) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	if len(f.events) > 0 {
		if b, err := json.Marshal(f.events); err == nil {
			h.Set("HX-Trigger", string(b))
		}
	}
	w.WriteHeader(f.status)
	if f.html != "" {
		_, _ = w.Write([]byte(f.html))
	}
}

// ErrorFragment renders message, escaped, as an inline error.
func ErrorFragment(code int, message string) *Fragment {
	return NewFragment().
		Status(code).
		HTML(`<p class="error" role="alert">` + template.HTMLEscapeString(message) + `</p>`)
}
