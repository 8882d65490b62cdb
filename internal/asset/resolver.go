// Package asset memoizes emote image handles so each distinct image is loaded once.
package asset

import "sync"

// Handle is a shared, possibly still loading, reference to an emote image.
type Handle interface {
	URL() string
}

// Loader turns an image URL into a Handle. Load must not block on the download.
type Loader interface {
	Load(url string) Handle
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc func(url string) Handle

// Load calls f(url).
func (f LoaderFunc) Load(url string) Handle { return f(url) }

// Link is a Handle that only carries the image location; the overlay client
// downloads and animates it.
type Link struct {
	Href string `json:"url"`
}

// URL returns the image location.
func (l *Link) URL() string { return l.Href }

// LinkLoader returns *Link handles.
var LinkLoader = LoaderFunc(func(url string) Handle { return &Link{Href: url} })

// Resolver caches handles by URL for the lifetime of the process.
type Resolver struct {
	loader Loader

	mu      sync.Mutex
	handles map[string]Handle
}

// NewResolver creates a resolver backed by loader. A nil loader means LinkLoader.
func NewResolver(loader Loader) *Resolver {
	if loader == nil {
		loader = LinkLoader
	}
	return &Resolver{
		loader:  loader,
		handles: make(map[string]Handle),
	}
}

// Resolve returns the cached handle for url, loading it on first use.
// The loader runs under the lock so concurrent first calls still load once.
func (r *Resolver) Resolve(url string) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[url]; ok {
		return h
	}
	h := r.loader.Load(url)
	r.handles[url] = h
	return h
}

// Len reports how many distinct assets have been loaded.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
