package asset

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// A Resource is a readable stream backed by a local file or a remote
// http(s) location. Scene files reference other resources (material
// libraries, nested models) relative to their own location.
type Resource struct {
	io.ReadCloser
	url *url.URL
}

// Get the path or URL of this resource.
func (r *Resource) Path() string {
	return r.url.String()
}

// Get the lower-cased file name suffix of the resource, e.g. ".obj". Known
// double extensions such as ".svo.zip" are returned as a whole.
func (r *Resource) Ext() string {
	base := strings.ToLower(path.Base(r.url.Path))
	if strings.HasSuffix(base, ".svo.zip") {
		return ".svo.zip"
	}
	return path.Ext(base)
}

// Returns true if the Resource is streamed over http/https.
func (r *Resource) IsRemote() bool {
	return r.url.Scheme == "http" || r.url.Scheme == "https"
}

// Open a resource. If relTo is specified and pathToResource is a relative
// path without a scheme, the resource is located relative to the directory
// containing relTo.
//
// The caller must close the returned resource.
func NewResource(pathToResource string, relTo *Resource) (*Resource, error) {
	loc, err := resolve(pathToResource, relTo)
	if err != nil {
		return nil, err
	}

	var reader io.ReadCloser
	switch loc.Scheme {
	case "", "file":
		reader, err = os.Open(filepath.Clean(filepath.FromSlash(loc.Path)))
		if err != nil {
			return nil, err
		}
	case "http", "https":
		resp, err := http.Get(loc.String())
		if err != nil {
			return nil, fmt.Errorf("resource: could not fetch '%s': %s", loc.String(), err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("resource: could not fetch '%s': status %d", loc.String(), resp.StatusCode)
		}
		reader = resp.Body
	default:
		return nil, fmt.Errorf("resource: unsupported scheme '%s'", loc.Scheme)
	}

	return &Resource{
		ReadCloser: reader,
		url:        loc,
	}, nil
}

// Build the URL for a resource, optionally relative to another one.
func resolve(pathToResource string, relTo *Resource) (*url.URL, error) {
	loc, err := url.Parse(filepath.ToSlash(pathToResource))
	if err != nil {
		return nil, err
	}

	if loc.Scheme != "" || relTo == nil || path.IsAbs(loc.Path) {
		return loc, nil
	}

	// Relative to a remote resource or a local file
	rel := *relTo.url
	if !relTo.IsRemote() {
		abs, err := filepath.Abs(filepath.FromSlash(relTo.url.Path))
		if err != nil {
			return nil, fmt.Errorf("resource: could not detect abs path for %s; %s", relTo.url.String(), err.Error())
		}
		rel.Path = filepath.ToSlash(abs)
	}
	rel.Path = path.Join(path.Dir(rel.Path), loc.Path)
	return &rel, nil
}

// Create a resource from a reader.
func NewResourceFromStream(name string, source io.Reader) *Resource {
	loc, err := url.Parse(filepath.ToSlash(name))
	if err != nil {
		loc = &url.URL{Path: name}
	}
	return &Resource{
		ReadCloser: io.NopCloser(source),
		url:        loc,
	}
}
