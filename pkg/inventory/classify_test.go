package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macadmins/jcimporter/pkg/config"
	"github.com/macadmins/jcimporter/pkg/jcapi"
)

// fakeInventory serves canned systems and app records with real pagination
// semantics: full pages until the data runs out, then a short page.
type fakeInventory struct {
	systems     []jcapi.System
	info        []jcapi.SystemInfo
	apps        map[string][]jcapi.SystemApp
	failSystems map[string]bool
	appCalls    int
}

func (f *fakeInventory) ListSystems(_ context.Context, limit, skip int) ([]jcapi.System, error) {
	return page(f.systems, limit, skip), nil
}

func (f *fakeInventory) ListSystemInfo(_ context.Context, limit, skip int) ([]jcapi.SystemInfo, error) {
	return page(f.info, limit, skip), nil
}

func (f *fakeInventory) ListSystemApps(_ context.Context, systemID string, limit, skip int) ([]jcapi.SystemApp, error) {
	f.appCalls++
	if f.failSystems[systemID] {
		return nil, errors.New("insights query failed")
	}
	return page(f.apps[systemID], limit, skip), nil
}

func page[T any](items []T, limit, skip int) []T {
	if skip >= len(items) {
		return nil
	}
	end := skip + limit
	if end > len(items) {
		end = len(items)
	}
	return items[skip:end]
}

func testConfig() *config.Configuration {
	cfg := config.GetDefaultConfig()
	cfg.PageSize = 2
	cfg.Workers = 3
	return cfg
}

func appleSystem(id string) (jcapi.System, jcapi.SystemInfo) {
	return jcapi.System{ID: id}, jcapi.SystemInfo{SystemID: id, HardwareVendor: "Apple Inc."}
}

func installed(systemID, bundle, version string) jcapi.SystemApp {
	return jcapi.SystemApp{
		SystemID:           systemID,
		BundleName:         bundle,
		BundleShortVersion: version,
		Path:               "/Applications/" + bundle + ".app",
	}
}

func TestCollectSystemsCrossChecksInventory(t *testing.T) {
	s1, i1 := appleSystem("s1")
	s2, i2 := appleSystem("s2")
	fake := &fakeInventory{
		systems: []jcapi.System{s1, s2},
		info: []jcapi.SystemInfo{
			i1, i2,
			// Insights record with no matching enrolled system.
			{SystemID: "stale", HardwareVendor: "Apple Inc."},
			// Wrong vendor.
			{SystemID: "s1-pc", HardwareVendor: "Dell Inc."},
		},
	}
	fake.systems = append(fake.systems, jcapi.System{ID: "s1-pc"})

	c := NewClassifier(fake, testConfig())
	ids, err := c.CollectSystems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids)
}

func TestCollectSystemsPaginationTermination(t *testing.T) {
	// Seven records with page size two: three full pages then a short
	// page; the collector must visit them all exactly once.
	var systems []jcapi.System
	var info []jcapi.SystemInfo
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		s, i := appleSystem(id)
		systems = append(systems, s)
		info = append(info, i)
	}
	fake := &fakeInventory{systems: systems, info: info}

	c := NewClassifier(fake, testConfig())
	ids, err := c.CollectSystems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g"}, ids)
}

func TestClassifyOutdated(t *testing.T) {
	// Scenario: target Foo 2.0, device has Foo 1.0.
	fake := &fakeInventory{
		apps: map[string][]jcapi.SystemApp{
			"d1": {installed("d1", "Foo", "1.0")},
		},
	}
	c := NewClassifier(fake, testConfig())

	results := c.Classify(context.Background(), []string{"d1"}, "Foo", "2.0")
	require.Len(t, results, 1)
	assert.Equal(t, StatusOutdated, results[0].Status)
	assert.Equal(t, "1.0", results[0].ObservedVersion)
}

func TestClassifyMatching(t *testing.T) {
	fake := &fakeInventory{
		apps: map[string][]jcapi.SystemApp{
			"d1": {installed("d1", "Foo", "2.0")},
		},
	}
	c := NewClassifier(fake, testConfig())

	results := c.Classify(context.Background(), []string{"d1"}, "Foo", "2.0")
	require.Len(t, results, 1)
	assert.Equal(t, StatusMatching, results[0].Status)
}

func TestClassifyAbsent(t *testing.T) {
	fake := &fakeInventory{
		apps: map[string][]jcapi.SystemApp{
			"d1": {installed("d1", "Bar", "9.9")},
		},
	}
	c := NewClassifier(fake, testConfig())

	results := c.Classify(context.Background(), []string{"d1"}, "Foo", "2.0")
	require.Len(t, results, 1)
	assert.Equal(t, StatusAbsent, results[0].Status)
	assert.Empty(t, results[0].ObservedVersion)
}

func TestClassifySentinelForcesOutdated(t *testing.T) {
	// Scenario: sentinel target, device has a newer Foo 5.0.
	fake := &fakeInventory{
		apps: map[string][]jcapi.SystemApp{
			"d2": {installed("d2", "Foo", "5.0")},
		},
	}
	c := NewClassifier(fake, testConfig())

	results := c.Classify(context.Background(), []string{"d2"}, "Foo", config.SentinelVersion)
	require.Len(t, results, 1)
	assert.Equal(t, StatusOutdated, results[0].Status)
}

func TestClassifyNormalizesVersions(t *testing.T) {
	fake := &fakeInventory{
		apps: map[string][]jcapi.SystemApp{
			"d1": {installed("d1", "Foo", "2.0.0")},
		},
	}
	c := NewClassifier(fake, testConfig())

	results := c.Classify(context.Background(), []string{"d1"}, "Foo", "2.0")
	require.Len(t, results, 1)
	assert.Equal(t, StatusMatching, results[0].Status)
}

func TestClassifyIgnoresNonStandardInstallPaths(t *testing.T) {
	fake := &fakeInventory{
		apps: map[string][]jcapi.SystemApp{
			"d1": {{
				SystemID:           "d1",
				BundleName:         "Foo",
				BundleShortVersion: "2.0",
				Path:               "/Users/jane/Downloads/Foo.app",
			}},
		},
	}
	c := NewClassifier(fake, testConfig())

	results := c.Classify(context.Background(), []string{"d1"}, "Foo", "2.0")
	require.Len(t, results, 1)
	assert.Equal(t, StatusAbsent, results[0].Status)
}

func TestClassifySkipsFailedSystems(t *testing.T) {
	fake := &fakeInventory{
		apps: map[string][]jcapi.SystemApp{
			"d1": {installed("d1", "Foo", "1.0")},
			"d3": {installed("d3", "Foo", "2.0")},
		},
		failSystems: map[string]bool{"d2": true},
	}
	c := NewClassifier(fake, testConfig())

	results := c.Classify(context.Background(), []string{"d1", "d2", "d3"}, "Foo", "2.0")
	require.Len(t, results, 2)
	assert.Equal(t, "d1", results[0].SystemID)
	assert.Equal(t, "d3", results[1].SystemID)
}

func TestClassifyDeterministicOrder(t *testing.T) {
	apps := make(map[string][]jcapi.SystemApp)
	ids := []string{"s01", "s02", "s03", "s04", "s05", "s06", "s07", "s08"}
	for _, id := range ids {
		apps[id] = []jcapi.SystemApp{installed(id, "Foo", "1.0")}
	}
	fake := &fakeInventory{apps: apps}
	c := NewClassifier(fake, testConfig())

	for i := 0; i < 3; i++ {
		results := c.Classify(context.Background(), ids, "Foo", "2.0")
		require.Len(t, results, len(ids))
		for i, id := range ids {
			assert.Equal(t, id, results[i].SystemID)
		}
	}
}

func TestClassifyPagesThroughAppRecords(t *testing.T) {
	// Five app records with page size two; the match sits on the last,
	// short page.
	fake := &fakeInventory{
		apps: map[string][]jcapi.SystemApp{
			"d1": {
				installed("d1", "A", "1"),
				installed("d1", "B", "1"),
				installed("d1", "C", "1"),
				installed("d1", "D", "1"),
				installed("d1", "Foo", "2.0"),
			},
		},
	}
	c := NewClassifier(fake, testConfig())

	results := c.Classify(context.Background(), []string{"d1"}, "Foo", "2.0")
	require.Len(t, results, 1)
	assert.Equal(t, StatusMatching, results[0].Status)
	// ceil(5/2) = 3 pages requested.
	assert.Equal(t, 3, fake.appCalls)
}
