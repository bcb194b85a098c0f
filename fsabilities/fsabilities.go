// Package fsabilities exposes the files under a directory root as
// resource-typed abilities. A watcher keeps the ability registry in sync as
// files appear and disappear; content is read at execute time, so edits need
// no re-registration.
package fsabilities

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"

	"github.com/hostbridge/mcp-adapter/abilities"
	"github.com/hostbridge/mcp-adapter/mcp"
)

const (
	defaultBaseURI   = "file://docs/"
	defaultNamespace = "fs"
)

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_-]+`)

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURI sets the URI prefix for registered resources. Defaults to
// "file://docs/".
func WithBaseURI(base string) Option {
	return func(p *Provider) {
		if base != "" {
			p.baseURI = strings.TrimRight(base, "/") + "/"
		}
	}
}

// WithNamespace sets the ability name namespace. Defaults to "fs".
func WithNamespace(ns string) Option {
	return func(p *Provider) {
		if ns != "" {
			p.namespace = ns
		}
	}
}

// WithLogger sets the provider's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}

// Provider registers one resource ability per regular file under root.
type Provider struct {
	abilities *abilities.Registry
	root      string
	baseURI   string
	namespace string
	log       *slog.Logger

	mu         sync.Mutex
	registered map[string]string // relative path -> ability name
	onChange   func(ctx context.Context, name string, added bool)
}

// SetOnChange installs a callback invoked after an ability is registered
// (added true) or unregistered (added false). Consumers use it to mirror
// ability changes into a component registry.
func (p *Provider) SetOnChange(fn func(ctx context.Context, name string, added bool)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

func (p *Provider) notify(ctx context.Context, name string, added bool) {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn(ctx, name, added)
	}
}

// New builds a Provider over an existing directory.
func New(reg *abilities.Registry, root string, opts ...Option) (*Provider, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("fsabilities: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("fsabilities: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fsabilities: root %s is not a directory", abs)
	}

	p := &Provider{
		abilities:  reg,
		root:       abs,
		baseURI:    defaultBaseURI,
		namespace:  defaultNamespace,
		log:        slog.Default(),
		registered: make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Sync walks the root and registers an ability for every regular file not
// yet known. It is safe to call repeatedly.
func (p *Provider) Sync(ctx context.Context) error {
	return filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		p.registerFile(ctx, path)
		return nil
	})
}

// Watch blocks syncing registrations with filesystem changes until the
// context is canceled. New files register; removed or renamed-away files
// unregister. Writes need no action because content is read on execute.
func (p *Provider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsabilities: start watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("fsabilities: watch root: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			p.handleEvent(ctx, watcher, ev)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.log.WarnContext(ctx, "fsabilities.watch.err", slog.String("err", werr.Error()))
		}
	}
}

func (p *Provider) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, ev fsnotify.Event) {
	switch {
	case ev.Op.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := watcher.Add(ev.Name); err != nil {
				p.log.WarnContext(ctx, "fsabilities.watch.add.fail", slog.String("path", ev.Name), slog.String("err", err.Error()))
			}
			_ = p.Sync(ctx)
			return
		}
		p.registerFile(ctx, ev.Name)
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		p.unregisterFile(ctx, ev.Name)
	}
}

func (p *Provider) registerFile(ctx context.Context, path string) {
	rel, err := filepath.Rel(p.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(filepath.Base(rel), ".") {
		return
	}

	p.mu.Lock()
	if _, exists := p.registered[rel]; exists {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	name := p.abilityName(rel)
	uri := p.baseURI + rel
	def := &abilities.Definition{
		AbilityName:        name,
		AbilityLabel:       rel,
		AbilityDescription: fmt.Sprintf("File %s under %s", rel, p.root),
		Input:              mcp.Schema{"type": "object", "properties": map[string]any{}},
		Metadata: abilities.Meta{
			Public:   true,
			Type:     abilities.TypeResource,
			URI:      uri,
			MimeType: mimeTypeFor(rel),
		},
		ExecuteFunc: func(ctx context.Context, _ map[string]any) (any, error) {
			return readContents(filepath.Join(p.root, filepath.FromSlash(rel)), uri)
		},
	}

	if err := p.abilities.Register(def); err != nil {
		p.log.WarnContext(ctx, "fsabilities.register.fail",
			slog.String("path", rel),
			slog.String("err", err.Error()))
		return
	}

	p.mu.Lock()
	p.registered[rel] = name
	p.mu.Unlock()
	p.log.DebugContext(ctx, "fsabilities.register", slog.String("path", rel), slog.String("uri", uri))
	p.notify(ctx, name, true)
}

func (p *Provider) unregisterFile(ctx context.Context, path string) {
	rel, err := filepath.Rel(p.root, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	p.mu.Lock()
	name, ok := p.registered[rel]
	if ok {
		delete(p.registered, rel)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	p.abilities.Unregister(name)
	p.log.DebugContext(ctx, "fsabilities.unregister", slog.String("path", rel))
	p.notify(ctx, name, false)
}

// Registered returns the ability names currently provided, keyed by relative
// path.
func (p *Provider) Registered() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.registered))
	for rel, name := range p.registered {
		out[rel] = name
	}
	return out
}

// abilityName derives a namespaced ability name from a relative path,
// lowercased with path separators and disallowed runes folded to dashes.
func (p *Provider) abilityName(rel string) string {
	verb := strings.ToLower(rel)
	verb = strings.ReplaceAll(verb, "/", "-")
	verb = nameSanitizeRe.ReplaceAllString(verb, "-")
	verb = strings.Trim(verb, "-_")
	if verb == "" {
		verb = "file"
	}
	return p.namespace + "/" + verb
}

func mimeTypeFor(rel string) string {
	if mt := mime.TypeByExtension(filepath.Ext(rel)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// readContents loads the file and picks the text or blob representation
// depending on whether the bytes are valid UTF-8.
func readContents(path, uri string) (any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	mt := mimeTypeFor(path)
	if utf8.Valid(b) {
		return mcp.ResourceContents{URI: uri, MimeType: mt, Text: string(b)}, nil
	}
	// handlers encode []byte results as base64 blobs.
	return b, nil
}
