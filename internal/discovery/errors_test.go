// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "container only",
			err:  &Error{Container: "mods/a.jar", Message: "ships mods.toml"},
			want: "mods/a.jar: ships mods.toml",
		},
		{
			name: "resource wins over container",
			err:  &Error{Container: "mods/a.jar", Resource: "mods/a.jar!/felis.mod.toml", Message: "bad"},
			want: "mods/a.jar!/felis.mod.toml: bad",
		},
		{
			name: "with cause",
			err:  &Error{Container: "mods/a", Message: "unreadable", Cause: fs.ErrPermission},
			want: "mods/a: unreadable: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	err := &Error{Container: "mods/a", Message: "unreadable", Cause: fs.ErrPermission}
	if !errors.Is(err, ErrDiscovery) {
		t.Error("errors.Is(err, ErrDiscovery) = false, want true")
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Error("errors.Is(err, fs.ErrPermission) = false, want true")
	}

	bare := &Error{Container: "mods/a", Message: "legacy"}
	if !errors.Is(bare, ErrDiscovery) {
		t.Error("errors.Is(bare, ErrDiscovery) = false, want true")
	}
}

func TestCollisionError(t *testing.T) {
	t.Parallel()

	err := &CollisionError{ModID: "core", FirstSource: "mods/one.jar", SecondSource: "mods/two.jar"}
	if !errors.Is(err, ErrModCollision) {
		t.Error("errors.Is(err, ErrModCollision) = false, want true")
	}
	msg := err.Error()
	for _, want := range []string{"mod core has already been registered", "mods/one.jar", "mods/two.jar"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}
