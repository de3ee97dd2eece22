package router

import (
	"testing"

	gwerrors "github.com/Opizontas-Studio/grpc-opizontas/internal/errors"
)

func TestExtractServiceName(t *testing.T) {
	cases := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"/pkg.Foo/Bar", "Foo", false},
		{"/a.b.c.Widget/Do", "Widget", false},
		{"Foo/Bar", "", true},
		{"/FooBar", "", true},
		{"/pkg.Foo/Bar/Baz", "", true},
		{"//Bar", "", true},
		{"/pkg./Bar", "", true},
		{"/pkg.Foo/", "", true},
	}

	for _, c := range cases {
		got, err := ExtractServiceName(c.path)
		if c.wantErr {
			if err != gwerrors.ErrMalformedPath {
				t.Errorf("%q: expected ErrMalformedPath, got %v", c.path, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", c.path, err)
			continue
		}
		if got != c.want {
			t.Errorf("%q: got %q, want %q", c.path, got, c.want)
		}
	}
}
