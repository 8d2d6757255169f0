// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/charmbracelet/log"

	"github.com/felisloader/felis/pkg/content"
	"github.com/felisloader/felis/pkg/modmeta"
)

func manifest(modid string) string {
	return "schema = 1\nmodid = \"" + modid + "\"\n"
}

func container(location string, files map[string]string) content.Collection {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(body)}
	}
	return content.NewFS(location, fsys)
}

func modIDs(mods []*Mod) []string {
	ids := make([]string, 0, len(mods))
	for _, m := range mods {
		ids = append(ids, m.ModID)
	}
	return ids
}

type (
	failingResource struct{ location string }

	// positioned places a collection at a fixed scan position.
	positioned struct {
		content.Collection
		seq int
	}

	// reversedScanner offers its collections last first, the worst arrival
	// order a concurrent scanner could produce.
	reversedScanner []content.Collection

	// unreadableCollection exposes one manifest whose Open always fails.
	unreadableCollection struct{ location string }
)

func (r failingResource) Location() string { return r.location }

func (p positioned) Seq() (int, bool) { return p.seq, true }

func (s reversedScanner) Offer(ctx context.Context, fn func(content.Collection) error) error {
	for _, c := range slices.Backward(s) {
		if err := fn(c); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (r failingResource) Open() (io.ReadCloser, error) {
	return nil, errors.New("permission denied")
}

func (c unreadableCollection) Location() string { return c.location }

func (c unreadableCollection) Resource(name string) (content.Resource, bool) {
	if name != modmeta.ManifestFileName {
		return nil, false
	}
	return failingResource{location: c.location + "!/" + name}, true
}

func (c unreadableCollection) Resources(name string) []content.Resource {
	if r, ok := c.Resource(name); ok {
		return []content.Resource{r}
	}
	return nil
}

func TestConsider_NoManifestIsLibrary(t *testing.T) {
	t.Parallel()

	d := New(nil)
	lib := container("lib.jar", map[string]string{"a/B.class": "cafebabe"})

	if got := d.Classify(lib).Kind; got != NoMods {
		t.Fatalf("Classify().Kind = %v, want %v", got, NoMods)
	}
	if err := d.Consider(lib); err != nil {
		t.Fatalf("Consider() error = %v", err)
	}
	if len(d.Libs()) != 1 || d.Libs()[0] != lib {
		t.Errorf("Libs() = %v, want [lib.jar]", d.Libs())
	}
	if len(d.Mods()) != 0 {
		t.Errorf("Mods() = %v, want none", modIDs(d.Mods()))
	}
}

func TestConsider_SingleValidManifest(t *testing.T) {
	t.Parallel()

	d := New(nil)
	c := container("core.jar", map[string]string{modmeta.ManifestFileName: manifest("core")})

	result := d.Classify(c)
	if result.Kind != Success || len(result.Mods) != 1 || result.Mods[0].ModID != "core" {
		t.Fatalf("Classify() = %+v, want Success([core])", result)
	}

	if err := d.Consider(c); err != nil {
		t.Fatalf("Consider() error = %v", err)
	}
	mod, ok := d.Mod("core")
	if !ok {
		t.Fatal("Mod(core) not registered")
	}
	if mod.Source != c {
		t.Error("Mod.Source should be the considered container")
	}
	if len(mod.Transformations()) != 0 {
		t.Errorf("Transformations() = %v, want none", mod.Transformations())
	}
	if len(d.Libs()) != 0 {
		t.Errorf("Libs() = %v, want none", d.Libs())
	}
}

func TestConsider_SchemaMismatchIsDropped(t *testing.T) {
	t.Parallel()

	d := New(nil)
	c := container("future.jar", map[string]string{
		modmeta.ManifestFileName: "schema = 2\nmodid = \"future\"\n",
	})

	result := d.Classify(c)
	if result.Kind != Failure || len(result.Errors) != 1 {
		t.Fatalf("Classify() = %+v, want Failure with one error", result)
	}
	if !errors.Is(result.Errors[0], modmeta.ErrSchema) || !errors.Is(result.Errors[0], ErrDiscovery) {
		t.Errorf("error = %v, want ErrDiscovery wrapping ErrSchema", result.Errors[0])
	}

	if err := d.Consider(c); err != nil {
		t.Fatalf("Consider() error = %v", err)
	}
	if len(d.Mods()) != 0 || len(d.Libs()) != 0 {
		t.Errorf("container should be in neither mods (%v) nor libs (%v)", modIDs(d.Mods()), d.Libs())
	}
	diags := d.Diagnostics()
	if len(diags) != 1 || diags[0].Code != CodeManifestSchema || diags[0].Severity != SeverityError {
		t.Errorf("Diagnostics() = %+v, want one manifest_schema error", diags)
	}
}

func TestConsider_PartialMods(t *testing.T) {
	t.Parallel()

	d := New(nil)
	c := content.NewLayered("pack.jar",
		container("pack.jar#0", map[string]string{modmeta.ManifestFileName: manifest("good")}),
		container("pack.jar#1", map[string]string{modmeta.ManifestFileName: "schema = 1\nmodid = \"bad"}),
	)

	result := d.Classify(c)
	if result.Kind != PartialMods {
		t.Fatalf("Classify().Kind = %v, want %v", result.Kind, PartialMods)
	}
	if len(result.Mods) != 1 || len(result.Errors) != 1 {
		t.Fatalf("Classify() = %d mods, %d errors, want 1 and 1", len(result.Mods), len(result.Errors))
	}
	if !errors.Is(result.Errors[0], modmeta.ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", result.Errors[0])
	}

	if err := d.Consider(c); err != nil {
		t.Fatalf("Consider() error = %v", err)
	}
	if _, ok := d.Mod("good"); !ok {
		t.Error("valid mod from a partial container should be registered")
	}
	diags := d.Diagnostics()
	if len(diags) != 1 || diags[0].Code != CodeManifestMalformed || diags[0].Path != "pack.jar#1!/felis.mod.toml" {
		t.Errorf("Diagnostics() = %+v, want one manifest_malformed for pack.jar#1", diags)
	}
}

func TestConsider_MultipleManifestsInOneContainer(t *testing.T) {
	t.Parallel()

	d := New(nil)
	c := content.NewLayered("multi.jar",
		container("multi.jar#0", map[string]string{modmeta.ManifestFileName: manifest("alpha")}),
		container("multi.jar#1", map[string]string{modmeta.ManifestFileName: manifest("beta")}),
	)

	if err := d.Consider(c); err != nil {
		t.Fatalf("Consider() error = %v", err)
	}
	ids := modIDs(d.Mods())
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "beta" {
		t.Errorf("Mods() = %v, want [alpha beta]", ids)
	}
}

func TestConsider_DuplicateModID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		containers []content.Collection
	}{
		{
			name: "different containers",
			containers: []content.Collection{
				container("a.jar", map[string]string{modmeta.ManifestFileName: manifest("core")}),
				container("b.jar", map[string]string{modmeta.ManifestFileName: manifest("core")}),
			},
		},
		{
			name: "same container",
			containers: []content.Collection{
				content.NewLayered("both.jar",
					container("both.jar#0", map[string]string{modmeta.ManifestFileName: manifest("core")}),
					container("both.jar#1", map[string]string{modmeta.ManifestFileName: manifest("core")}),
				),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := New(nil)
			var err error
			for _, c := range tt.containers {
				if err = d.Consider(c); err != nil {
					break
				}
			}

			var collision *CollisionError
			if !errors.As(err, &collision) {
				t.Fatalf("Consider() error = %v, want *CollisionError", err)
			}
			if !errors.Is(err, ErrModCollision) {
				t.Error("CollisionError should wrap ErrModCollision")
			}
			if collision.ModID != "core" {
				t.Errorf("ModID = %q, want %q", collision.ModID, "core")
			}
			if len(d.Mods()) != 1 {
				t.Errorf("len(Mods()) = %d, want 1", len(d.Mods()))
			}
		})
	}
}

func TestConsider_LegacyManifestIsLibrary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	d := New(log.New(&buf))
	c := container("old.jar", map[string]string{
		modmeta.LegacyManifestFileName: "this is not even toml [",
		modmeta.ManifestFileName:       manifest("old"),
	})

	if err := d.Consider(c); err != nil {
		t.Fatalf("Consider() error = %v", err)
	}
	if len(d.Libs()) != 1 || len(d.Mods()) != 0 {
		t.Errorf("legacy container should be a library, got libs=%d mods=%d", len(d.Libs()), len(d.Mods()))
	}
	if !strings.Contains(buf.String(), "old metadata schema") {
		t.Errorf("log output %q should warn about the legacy manifest", buf.String())
	}
	diags := d.Diagnostics()
	if len(diags) != 1 || diags[0].Code != CodeLegacyManifest || diags[0].Severity != SeverityWarning {
		t.Errorf("Diagnostics() = %+v, want one legacy_manifest warning", diags)
	}
}

func TestConsider_UnreadableManifest(t *testing.T) {
	t.Parallel()

	d := New(nil)
	result := d.Classify(unreadableCollection{location: "locked.jar"})
	if result.Kind != Failure || len(result.Errors) != 1 {
		t.Fatalf("Classify() = %+v, want Failure with one error", result)
	}
	var de *Error
	if !errors.As(result.Errors[0], &de) || de.Code != CodeManifestUnreadable {
		t.Errorf("error = %v, want manifest_unreadable *Error", result.Errors[0])
	}
}

func TestConsider_InvalidManifest(t *testing.T) {
	t.Parallel()

	d := New(nil)
	c := container("nameless.jar", map[string]string{modmeta.ManifestFileName: "schema = 1\n"})
	result := d.Classify(c)
	if result.Kind != Failure {
		t.Fatalf("Classify().Kind = %v, want %v", result.Kind, Failure)
	}
	var de *Error
	if !errors.As(result.Errors[0], &de) || de.Code != CodeManifestInvalid {
		t.Errorf("error = %v, want manifest_invalid *Error", result.Errors[0])
	}
}

func TestRegisterMod_ConcurrentCollision(t *testing.T) {
	t.Parallel()

	for range 50 {
		d := New(nil)
		a := NewMod(container("a.jar", nil), &modmeta.Metadata{ModID: "core"})
		b := NewMod(container("b.jar", nil), &modmeta.Metadata{ModID: "core"})

		var (
			wg   sync.WaitGroup
			errA error
			errB error
		)
		wg.Add(2)
		go func() { defer wg.Done(); errA = d.RegisterMod(a) }()
		go func() { defer wg.Done(); errB = d.RegisterMod(b) }()
		wg.Wait()

		if (errA == nil) == (errB == nil) {
			t.Fatalf("exactly one registration must fail, got errA=%v errB=%v", errA, errB)
		}
		if len(d.Mods()) != 1 {
			t.Fatalf("len(Mods()) = %d, want 1", len(d.Mods()))
		}
	}
}

func TestWalkScanner_AndFinish(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	d := New(log.New(&buf))
	scanner := content.Static{
		container("core.jar", map[string]string{modmeta.ManifestFileName: manifest("core")}),
		container("extra.jar", map[string]string{modmeta.ManifestFileName: manifest("extra")}),
		container("lib.jar", nil),
	}

	if err := d.WalkScanner(context.Background(), scanner); err != nil {
		t.Fatalf("WalkScanner() error = %v", err)
	}
	summary := d.Finish()
	if summary.Mods != 2 || summary.Libs != 1 || summary.Perf.Count != 3 {
		t.Errorf("Finish() = %+v, want 2 mods, 1 lib, 3 timed containers", summary)
	}
	if !strings.Contains(buf.String(), "discovered 2 mods") {
		t.Errorf("log output %q should contain the summary", buf.String())
	}
}

func TestWalkScanner_CollisionAborts(t *testing.T) {
	t.Parallel()

	d := New(nil)
	scanner := content.Static{
		container("a.jar", map[string]string{modmeta.ManifestFileName: manifest("core")}),
		container("b.jar", map[string]string{modmeta.ManifestFileName: manifest("core")}),
		container("c.jar", map[string]string{modmeta.ManifestFileName: manifest("later")}),
	}

	err := d.WalkScanner(context.Background(), scanner)
	if !errors.Is(err, ErrModCollision) {
		t.Fatalf("WalkScanner() error = %v, want ErrModCollision", err)
	}
	if _, ok := d.Mod("later"); ok {
		t.Error("scan should stop at the collision")
	}
}

func TestWalkScanner_ScanOrderIndependentOfArrival(t *testing.T) {
	t.Parallel()

	d := New(nil)
	scanner := reversedScanner{
		positioned{seq: 0, Collection: content.NewLayered("a.jar",
			container("a.jar#1", map[string]string{modmeta.ManifestFileName: manifest("alpha-one")}),
			container("a.jar#2", map[string]string{modmeta.ManifestFileName: manifest("alpha-two")}),
		)},
		positioned{seq: 1, Collection: container("lib1.jar", nil)},
		positioned{seq: 2, Collection: container("b.jar", map[string]string{modmeta.ManifestFileName: manifest("beta")})},
		positioned{seq: 3, Collection: container("lib2.jar", nil)},
	}

	if err := d.WalkScanner(context.Background(), scanner); err != nil {
		t.Fatalf("WalkScanner() error = %v", err)
	}
	if got, want := modIDs(d.Mods()), []string{"alpha-one", "alpha-two", "beta"}; !slices.Equal(got, want) {
		t.Errorf("Mods() = %v, want %v", got, want)
	}
	var libs []string
	for _, c := range d.Libs() {
		libs = append(libs, c.Location())
	}
	if want := []string{"lib1.jar", "lib2.jar"}; !slices.Equal(libs, want) {
		t.Errorf("Libs() = %v, want %v", libs, want)
	}
}

func TestWalkScanner_CollisionNamesEarlierContainerFirst(t *testing.T) {
	t.Parallel()

	d := New(nil)
	scanner := reversedScanner{
		positioned{seq: 0, Collection: container("a.jar", map[string]string{modmeta.ManifestFileName: manifest("core")})},
		positioned{seq: 1, Collection: container("b.jar", map[string]string{modmeta.ManifestFileName: manifest("core")})},
	}

	err := d.WalkScanner(context.Background(), scanner)
	var ce *CollisionError
	if !errors.As(err, &ce) {
		t.Fatalf("WalkScanner() error = %v, want *CollisionError", err)
	}
	if ce.FirstSource != "a.jar" || ce.SecondSource != "b.jar" {
		t.Errorf("collision sources = (%s, %s), want (a.jar, b.jar)", ce.FirstSource, ce.SecondSource)
	}
}

func TestConsider_NonSemverVersionLoadsWithWarning(t *testing.T) {
	t.Parallel()

	d := New(nil)
	c := container("old.jar", map[string]string{
		modmeta.ManifestFileName: "schema = 1\nmodid = \"Old.Mod\"\nversion = \"r12\"\n",
	})
	if err := d.Consider(c); err != nil {
		t.Fatalf("Consider() error = %v", err)
	}

	mod, ok := d.Mod("Old.Mod")
	if !ok {
		t.Fatal("mod with a free-form id and version was not registered")
	}
	if mod.Metadata.Version != "r12" || mod.Metadata.Version.Semver() != nil {
		t.Errorf("Version = %q (semver %v), want r12 without semver", mod.Metadata.Version, mod.Metadata.Version.Semver())
	}

	diags := d.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("len(Diagnostics()) = %d, want 1", len(diags))
	}
	if diags[0].Severity != SeverityWarning || diags[0].Code != CodeVersionNotSemver {
		t.Errorf("diagnostic = %+v, want a %s warning", diags[0], CodeVersionNotSemver)
	}
}

func TestPerfCounter(t *testing.T) {
	t.Parallel()

	p := NewPerfCounter()
	now := time.Unix(0, 0)
	p.nowFunc = func() time.Time {
		now = now.Add(10 * time.Millisecond)
		return now
	}

	for range 4 {
		_ = p.Timed(func() error { return nil })
	}
	wantErr := errors.New("boom")
	if err := p.Timed(func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Errorf("Timed() error = %v, want %v", err, wantErr)
	}

	s := p.Summary()
	if s.Count != 5 || s.Total != 50*time.Millisecond || s.Average != 10*time.Millisecond {
		t.Errorf("Summary() = %+v, want 5 calls, 50ms total, 10ms average", s)
	}
}

func TestResultKind_String(t *testing.T) {
	t.Parallel()

	kinds := map[ResultKind]string{
		NoMods:         "no mods",
		Success:        "success",
		PartialMods:    "partial mods",
		Failure:        "failure",
		ResultKind(42): "unknown",
	}
	for k, want := range kinds {
		if got := k.String(); got != want {
			t.Errorf("ResultKind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}
