// Package registryclient talks to an npm-registry-protocol package
// registry: fetching package metadata and downloading version tarballs.
// It is grounded directly on the teacher's internal/version/npm.go
// (URL construction, package-name validation, response-size limiting)
// and internal/httputil (the SSRF-hardened transport), generalized from
// tsuku's tool-version lookups to zepo's dependency resolution.
package registryclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/zepo-dev/zepo/internal/errtypes"
	"github.com/zepo-dev/zepo/internal/httputil"
	"github.com/zepo-dev/zepo/internal/manifest"
	"github.com/zepo-dev/zepo/internal/reflectbind"
	"github.com/zepo-dev/zepo/internal/token"
)

var packageNameRegex = regexp.MustCompile(`^(@[a-z0-9]([a-z0-9._-]*[a-z0-9])?/)?[a-z0-9]([a-z0-9._-]*[a-z0-9])?$`)

// ValidPackageName reports whether name is a syntactically valid
// (scoped or unscoped) npm package name.
func ValidPackageName(name string) bool {
	if name == "" || len(name) > 214 || strings.Contains(name, "..") {
		return false
	}
	if !packageNameRegex.MatchString(name) {
		return false
	}
	if strings.HasPrefix(name, "@") {
		parts := strings.SplitN(name[1:], "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return false
		}
	}
	return true
}

// maxMetadataResponseSize bounds how much of a metadata response body
// is read, mirroring the teacher's 50MB ceiling on npm registry responses.
const maxMetadataResponseSize = 50 * 1024 * 1024

// Client fetches package metadata and tarballs from one registry.
type Client struct {
	baseURL  string
	username string
	password string
	hasAuth  bool

	metadataClient *http.Client // never follows redirects
	tarballClient  *http.Client // follows redirects, SSRF-guarded
}

// Option configures a Client.
type Option func(*Client)

// WithBasicAuth configures HTTP basic auth credentials for metadata
// requests, mirroring the original's globalConfiguration-sourced auth.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
		c.hasAuth = true
	}
}

// NewClient builds a registry client against baseURL (e.g.
// "https://registry.npmjs.org").
func NewClient(baseURL string, opts ...Option) *Client {
	secure := httputil.NewSecureClient(httputil.DefaultOptions())

	metadataOpts := httputil.DefaultOptions()
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		tarballClient: secure,
	}
	// Metadata requests must not follow redirects: the registry protocol
	// promises metadata endpoints respond directly, and not following
	// redirects avoids SSRF surface on a response body we parse as JSON.
	metadataClient := httputil.NewSecureClient(metadataOpts)
	metadataClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	c.metadataClient = metadataClient

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) packageURL(name string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("registryclient: invalid registry URL: %w", err)
	}
	base := u.Path
	if base == "" {
		base = "/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u.Path = base + name
	return u.String(), nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.hasAuth {
		req.SetBasicAuth(c.username, c.password)
	}
}

// FetchMetadata fetches and parses the PackageInfo document for name.
func (c *Client) FetchMetadata(ctx context.Context, name string) (*manifest.PackageInfo, error) {
	if !ValidPackageName(name) {
		return nil, fmt.Errorf("registryclient: invalid package name %q", name)
	}
	reqURL, err := c.packageURL(name)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &errtypes.RegistryError{URL: reqURL, Err: err}
	}
	req.Header.Set("Accept-Encoding", "identity")
	c.setAuth(req)

	resp, err := c.metadataClient.Do(req)
	if err != nil {
		return nil, &errtypes.RegistryError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &errtypes.RegistryError{
			URL: reqURL,
			Err: fmt.Errorf("registry returned status %d", resp.StatusCode),
		}
	}

	limited := io.LimitReader(resp.Body, maxMetadataResponseSize)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, &errtypes.RegistryError{URL: reqURL, Err: err}
	}

	tok, err := token.Parse(body)
	if err != nil {
		return nil, &errtypes.RegistryError{URL: reqURL, Err: err}
	}

	var info manifest.PackageInfo
	if err := reflectbind.Parse(tok, &info); err != nil {
		return nil, &errtypes.RegistryError{URL: reqURL, Err: err}
	}
	if info.Name == "" {
		info.Name = name
	}
	return &info, nil
}

// DownloadTarball streams the tarball at tarballURL into sink. Unlike
// FetchMetadata, this follows redirects (through the SSRF-guarded
// redirect checker) since dist.tarball URLs may be served from a CDN.
// No size limit is enforced at this layer.
func (c *Client) DownloadTarball(ctx context.Context, tarballURL string, sink io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tarballURL, nil)
	if err != nil {
		return &errtypes.DownloadError{URL: tarballURL, Err: err}
	}
	c.setAuth(req)

	resp, err := c.tarballClient.Do(req)
	if err != nil {
		return &errtypes.DownloadError{URL: tarballURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &errtypes.DownloadError{
			URL: tarballURL,
			Err: fmt.Errorf("download returned status %d", resp.StatusCode),
		}
	}

	if _, err := io.Copy(sink, resp.Body); err != nil {
		return &errtypes.DownloadError{URL: tarballURL, Err: err}
	}
	return nil
}
