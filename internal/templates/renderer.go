package templates

import (
	"fmt"
	"sync"

	"github.com/flosch/pongo2/v6"
)

var disableAutoescape sync.Once

// Renderer compiles templates from a Store with pongo2 and renders them.
// Compiled templates are cached per name for the lifetime of the Renderer.
type Renderer struct {
	store *Store

	mu    sync.Mutex
	cache map[string]*pongo2.Template
}

// NewRenderer returns a renderer for templates in store. Output is plain text,
// so HTML autoescaping is turned off.
func NewRenderer(store *Store) *Renderer {
	disableAutoescape.Do(func() {
		pongo2.SetAutoescape(false)
	})
	return &Renderer{
		store: store,
		cache: make(map[string]*pongo2.Template),
	}
}

// Compile parses the named template without rendering it.
func (r *Renderer) Compile(name string) error {
	_, err := r.template(name)
	return err
}

// Render executes the named template with data.
func (r *Renderer) Render(name string, data map[string]any) (string, error) {
	tpl, err := r.template(name)
	if err != nil {
		return "", err
	}

	out, err := tpl.Execute(pongo2.Context(data))
	if err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return out, nil
}

func (r *Renderer) template(name string) (*pongo2.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tpl, ok := r.cache[name]; ok {
		return tpl, nil
	}

	src, err := r.store.Load(name)
	if err != nil {
		return nil, err
	}

	tpl, err := pongo2.FromBytes(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	r.cache[name] = tpl
	return tpl, nil
}
