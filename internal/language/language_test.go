// SPDX-License-Identifier: MPL-2.0

package language

import (
	"errors"
	"fmt"
	"plugin"
	"reflect"
	"strings"
	"testing"
)

type (
	greeter interface{ Greet() string }

	foo struct{}
)

func (foo) Greet() string { return "foo" }

var errNoSuchSpecifier = errors.New("no such specifier")

func failing(msg string) Adapter {
	return AdapterFunc(func(specifier string, _ reflect.Type) (any, error) {
		return nil, fmt.Errorf("%s: %w", msg, errNoSuchSpecifier)
	})
}

func onlyFoo() Adapter {
	return AdapterFunc(func(specifier string, _ reflect.Type) (any, error) {
		if specifier == "java:Foo" {
			return foo{}, nil
		}
		return nil, errors.New("B cannot build " + specifier)
	})
}

func TestDelegating_FirstSuccessWins(t *testing.T) {
	t.Parallel()

	d := NewDelegating(failing("A"), onlyFoo())

	g, err := Create[greeter](d, "java:Foo")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if g.Greet() != "foo" {
		t.Errorf("Greet() = %q, want %q", g.Greet(), "foo")
	}
}

func TestDelegating_AggregatesFailures(t *testing.T) {
	t.Parallel()

	d := NewDelegating(failing("A"), onlyFoo())

	_, err := Create[greeter](d, "java:Bar")
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("Create() error = %v, want *ResolutionError", err)
	}
	if !strings.HasPrefix(resErr.Primary.Error(), "A:") {
		t.Errorf("Primary = %v, want A's failure", resErr.Primary)
	}
	if len(resErr.Suppressed) != 1 || !strings.Contains(resErr.Suppressed[0].Error(), "B cannot build java:Bar") {
		t.Errorf("Suppressed = %v, want B's failure", resErr.Suppressed)
	}
	if !errors.Is(err, errNoSuchSpecifier) {
		t.Error("errors.Is should see through to the primary cause")
	}
	if len(resErr.Errors()) != 2 {
		t.Errorf("len(Errors()) = %d, want 2", len(resErr.Errors()))
	}
	if !strings.Contains(err.Error(), "suppressed: B cannot build") {
		t.Errorf("Error() = %q, should list suppressed failures", err.Error())
	}
}

func TestDelegating_NoChildren(t *testing.T) {
	t.Parallel()

	d := NewDelegating()
	for _, spec := range []string{"", "native:x", "java:Foo"} {
		_, err := d.CreateInstance(spec, nil)
		if !errors.Is(err, ErrNoAdapters) {
			t.Errorf("CreateInstance(%q) error = %v, want ErrNoAdapters", spec, err)
		}
	}
}

func TestDelegating_RegisterOrder(t *testing.T) {
	t.Parallel()

	var calls []string
	record := func(name string) Adapter {
		return AdapterFunc(func(string, reflect.Type) (any, error) {
			calls = append(calls, name)
			return nil, errors.New(name)
		})
	}

	d := NewDelegating()
	d.Register(record("first"))
	d.Register(record("second"))
	d.Register(record("third"))

	_, err := d.CreateInstance("x", nil)
	if err == nil {
		t.Fatal("CreateInstance() should fail")
	}
	if strings.Join(calls, ",") != "first,second,third" {
		t.Errorf("calls = %v, want registration order", calls)
	}

	var count int
	for range d.Adapters() {
		count++
	}
	if count != 3 {
		t.Errorf("Adapters() yielded %d, want 3", count)
	}
}

func TestCreate_CapabilityMismatch(t *testing.T) {
	t.Parallel()

	a := AdapterFunc(func(string, reflect.Type) (any, error) { return 42, nil })
	_, err := Create[greeter](a, "x")
	if !errors.Is(err, ErrCapability) {
		t.Fatalf("Create() error = %v, want ErrCapability", err)
	}
}

func TestNative(t *testing.T) {
	t.Parallel()

	n := NewNative("")
	constructed := 0
	if err := n.Register("foo", func() (any, error) { constructed++; return foo{}, nil }); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := n.Register("foo", func() (any, error) { return foo{}, nil }); err == nil {
		t.Error("registering a name twice should fail")
	}
	if err := n.Register("int", func() (any, error) { return 1, nil }); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := n.Register("broken", func() (any, error) { return nil, errors.New("boom") }); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	g, err := Create[greeter](n, "native:foo")
	if err != nil || g.Greet() != "foo" || constructed != 1 {
		t.Fatalf("Create(native:foo) = %v, %v (constructed %d)", g, err, constructed)
	}

	tests := []struct {
		specifier string
		want      error
	}{
		{specifier: "java:Foo", want: ErrUnknownSpecifier},
		{specifier: "native:missing", want: ErrUnknownSpecifier},
		{specifier: "native:int", want: ErrCapability},
	}
	for _, tt := range tests {
		if _, err := Create[greeter](n, tt.specifier); !errors.Is(err, tt.want) {
			t.Errorf("Create(%q) error = %v, want %v", tt.specifier, err, tt.want)
		}
	}
	if _, err := Create[greeter](n, "native:broken"); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Create(native:broken) error = %v, want factory error", err)
	}
	if len(n.Names()) != 3 {
		t.Errorf("Names() = %v, want 3 entries", n.Names())
	}
}

type fakePlugin map[string]plugin.Symbol

func (f fakePlugin) Lookup(name string) (plugin.Symbol, error) {
	if sym, ok := f[name]; ok {
		return sym, nil
	}
	return nil, fmt.Errorf("symbol %s not found", name)
}

func TestPlugin(t *testing.T) {
	t.Parallel()

	var opened string
	p := NewPlugin("/mods")
	p.open = func(path string) (symbolLookup, error) {
		opened = path
		return fakePlugin{
			"NewFoo":    func() any { return foo{} },
			"NewFooErr": func() (any, error) { return foo{}, nil },
			"Version":   new(string),
		}, nil
	}

	g, err := Create[greeter](p, "plugin:ext/foo.so#NewFoo")
	if err != nil || g.Greet() != "foo" {
		t.Fatalf("Create() = %v, %v", g, err)
	}
	if opened != "/mods/ext/foo.so" {
		t.Errorf("opened %q, want relative path joined to BaseDir", opened)
	}
	if _, err := Create[greeter](p, "plugin:/abs/foo.so#NewFooErr"); err != nil {
		t.Errorf("Create(NewFooErr) error = %v", err)
	}

	for _, spec := range []string{"plugin:foo.so#Version", "plugin:foo.so#Missing", "plugin:foo.so", "native:foo"} {
		if _, err := Create[greeter](p, spec); err == nil {
			t.Errorf("Create(%q) should fail", spec)
		}
	}
	if _, err := Create[greeter](p, "native:foo"); !errors.Is(err, ErrUnknownSpecifier) {
		t.Errorf("foreign scheme error = %v, want ErrUnknownSpecifier", err)
	}
}
