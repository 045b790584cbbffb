package extension

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arkhamforge/docintel/pkg/config"
)

// ManifestSource resolves an extension's declared manifest_ref into a full
// config.ExtensionConfig, for extensions declared by pinned git reference
// rather than entirely inline in docintel.yaml.
type ManifestSource interface {
	Resolve(ctx context.Context, manifestRef string) (*config.ExtensionConfig, error)
}

// githubBlobTreePattern matches GitHub blob or tree URLs:
// https://github.com/{owner}/{repo}/{blob|tree}/{ref}/{path...}
var githubBlobTreePattern = regexp.MustCompile(`^/([^/]+)/([^/]+)/(blob|tree)/([^/]+)(?:/(.*))?$`)

// convertToRawURL converts a GitHub blob URL to a raw.githubusercontent.com
// URL. Returns the URL unchanged if it isn't a recognized GitHub blob/tree
// URL (e.g. already raw, or some other host).
func convertToRawURL(githubURL string) string {
	parsed, err := url.Parse(githubURL)
	if err != nil {
		return githubURL
	}
	if parsed.Host == "raw.githubusercontent.com" {
		return githubURL
	}
	if parsed.Host != "github.com" && parsed.Host != "www.github.com" {
		return githubURL
	}
	matches := githubBlobTreePattern.FindStringSubmatch(parsed.Path)
	if matches == nil {
		return githubURL
	}
	owner, repo, ref, path := matches[1], matches[2], matches[4], matches[5]
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/refs/heads/%s/%s", owner, repo, ref, path)
}

// manifestCacheEntry holds a cached parsed manifest with a fetch
// timestamp for TTL expiration.
type manifestCacheEntry struct {
	config    *config.ExtensionConfig
	fetchedAt time.Time
}

// GitHubManifestSource fetches and caches extension manifests from pinned
// GitHub refs.
type GitHubManifestSource struct {
	httpClient *http.Client
	token      string

	mu    sync.RWMutex
	cache map[string]manifestCacheEntry
	ttl   time.Duration
}

// NewGitHubManifestSource constructs a source. token may be empty (public
// repos only, lower rate limits). ttl defaults to 5 minutes if non-positive.
func NewGitHubManifestSource(token string, ttl time.Duration) *GitHubManifestSource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &GitHubManifestSource{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      token,
		cache:      make(map[string]manifestCacheEntry),
		ttl:        ttl,
	}
}

// Resolve fetches and parses the manifest YAML at manifestRef (a GitHub
// blob/tree URL or an already-raw URL), caching the parsed result for ttl.
func (s *GitHubManifestSource) Resolve(ctx context.Context, manifestRef string) (*config.ExtensionConfig, error) {
	if cfg, ok := s.fromCache(manifestRef); ok {
		return cfg, nil
	}

	rawURL := convertToRawURL(manifestRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %s: %v", ErrManifestFetch, rawURL, err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrManifestFetch, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GitHub returned HTTP %d for %s", ErrManifestFetch, resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body of %s: %v", ErrManifestFetch, rawURL, err)
	}

	var cfg config.ExtensionConfig
	if err := yaml.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse manifest YAML from %s: %v", ErrManifestFetch, rawURL, err)
	}
	cfg.ManifestRef = manifestRef

	s.mu.Lock()
	s.cache[manifestRef] = manifestCacheEntry{config: &cfg, fetchedAt: time.Now()}
	s.mu.Unlock()

	return &cfg, nil
}

func (s *GitHubManifestSource) fromCache(manifestRef string) (*config.ExtensionConfig, bool) {
	s.mu.RLock()
	entry, ok := s.cache[manifestRef]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(entry.fetchedAt) > s.ttl {
		s.mu.Lock()
		delete(s.cache, manifestRef)
		s.mu.Unlock()
		return nil, false
	}
	return entry.config, true
}

// validateManifestRef checks a manifest_ref uses an allowed scheme
// before any fetch is attempted.
func validateManifestRef(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed manifest_ref: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid manifest_ref scheme %q: only http and https allowed", parsed.Scheme)
	}
	return nil
}

// DiscoverManifests resolves every declared extension's final
// config.ExtensionConfig: entries with no ManifestRef pass through
// unchanged; entries with a ManifestRef are fetched and merged in, with
// inline fields (everything set in docintel.yaml) taking precedence over
// the fetched manifest's corresponding zero-valued fields. Invalid or
// unreachable manifests are reported, not silently dropped.
func DiscoverManifests(ctx context.Context, source ManifestSource, declared map[string]*config.ExtensionConfig) (map[string]*config.ExtensionConfig, error) {
	resolved := make(map[string]*config.ExtensionConfig, len(declared))
	var errs []string

	for name, cfg := range declared {
		if cfg.ManifestRef == "" {
			resolved[name] = cfg
			continue
		}
		if err := validateManifestRef(cfg.ManifestRef); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		fetched, err := source.Resolve(ctx, cfg.ManifestRef)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		resolved[name] = mergeManifest(cfg, fetched)
	}

	if len(errs) > 0 {
		return resolved, fmt.Errorf("%w: %s", ErrManifestFetch, strings.Join(errs, "; "))
	}
	return resolved, nil
}

// mergeManifest overlays a fetched manifest's fields onto any inline field
// the local declaration left unset, preferring the inline declaration
// wherever it supplied a value.
func mergeManifest(inline, fetched *config.ExtensionConfig) *config.ExtensionConfig {
	merged := *inline
	if merged.Version == "" {
		merged.Version = fetched.Version
	}
	if merged.APIPrefix == "" {
		merged.APIPrefix = fetched.APIPrefix
	}
	if merged.SchemaName == "" {
		merged.SchemaName = fetched.SchemaName
	}
	if len(merged.Subscribe) == 0 {
		merged.Subscribe = fetched.Subscribe
	}
	if len(merged.Publishes) == 0 {
		merged.Publishes = fetched.Publishes
	}
	if len(merged.Pools) == 0 {
		merged.Pools = fetched.Pools
	}
	if merged.Metadata == nil {
		merged.Metadata = fetched.Metadata
	}
	return &merged
}
