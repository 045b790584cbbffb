package extension_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkhamforge/docintel/pkg/config"
	"github.com/arkhamforge/docintel/pkg/extension"
)

const testManifestYAML = `
name: contradictions
version: 2.1.0
api_prefix: /api/contradictions
schema_name: contradictions
subscribe:
  - document.complete
publishes:
  - contradictions.chain.detected
`

func TestGitHubManifestSourceResolvesAndParses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testManifestYAML))
	}))
	defer srv.Close()

	source := extension.NewGitHubManifestSource("", time.Minute)
	cfg, err := source.Resolve(context.Background(), srv.URL+"/manifest.yaml")
	require.NoError(t, err)
	assert.Equal(t, "contradictions", cfg.Name)
	assert.Equal(t, "2.1.0", cfg.Version)
	assert.Equal(t, "/api/contradictions", cfg.APIPrefix)
	assert.Equal(t, []string{"document.complete"}, cfg.Subscribe)
}

func TestGitHubManifestSourceCachesWithinTTL(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(testManifestYAML))
	}))
	defer srv.Close()

	source := extension.NewGitHubManifestSource("", time.Minute)
	ctx := context.Background()

	_, err := source.Resolve(ctx, srv.URL+"/manifest.yaml")
	require.NoError(t, err)
	_, err = source.Resolve(ctx, srv.URL+"/manifest.yaml")
	require.NoError(t, err)

	assert.Equal(t, 1, hits)
}

func TestGitHubManifestSourceNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	source := extension.NewGitHubManifestSource("", time.Minute)
	_, err := source.Resolve(context.Background(), srv.URL+"/missing.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, extension.ErrManifestFetch)
}

// stubManifestSource returns a canned config for any ref, for testing
// DiscoverManifests' merge behavior without network access.
type stubManifestSource struct {
	cfg *config.ExtensionConfig
	err error
}

func (s *stubManifestSource) Resolve(ctx context.Context, manifestRef string) (*config.ExtensionConfig, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.cfg, nil
}

func TestDiscoverManifestsPassesThroughInlineDeclarations(t *testing.T) {
	declared := map[string]*config.ExtensionConfig{
		"notifier": {Name: "notifier", Version: "1.0.0", APIPrefix: "/api/notifier", SchemaName: "notifier", Enabled: true},
	}

	resolved, err := extension.DiscoverManifests(context.Background(), &stubManifestSource{}, declared)
	require.NoError(t, err)
	assert.Same(t, declared["notifier"], resolved["notifier"])
}

func TestDiscoverManifestsMergesFetchedFieldsForPinnedRef(t *testing.T) {
	declared := map[string]*config.ExtensionConfig{
		"contradictions": {Name: "contradictions", ManifestRef: "https://github.com/org/repo/blob/main/manifest.yaml", Enabled: true},
	}
	fetched := &config.ExtensionConfig{
		Name:       "contradictions",
		Version:    "2.1.0",
		APIPrefix:  "/api/contradictions",
		SchemaName: "contradictions",
		Subscribe:  []string{"document.complete"},
	}

	resolved, err := extension.DiscoverManifests(context.Background(), &stubManifestSource{cfg: fetched}, declared)
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", resolved["contradictions"].Version)
	assert.Equal(t, "/api/contradictions", resolved["contradictions"].APIPrefix)
	assert.True(t, resolved["contradictions"].Enabled)
}

func TestDiscoverManifestsReportsFetchFailureWithoutDroppingOthers(t *testing.T) {
	declared := map[string]*config.ExtensionConfig{
		"broken":  {Name: "broken", ManifestRef: "https://github.com/org/repo/blob/main/manifest.yaml"},
		"healthy": {Name: "healthy", Version: "1.0.0", APIPrefix: "/api/healthy", SchemaName: "healthy", Enabled: true},
	}

	resolved, err := extension.DiscoverManifests(context.Background(), &stubManifestSource{err: extension.ErrManifestFetch}, declared)
	require.Error(t, err)
	assert.Contains(t, resolved, "healthy")
	assert.NotContains(t, resolved, "broken")
}
