package assets

import "testing"

func TestPublicID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/images/abc123.png", "abc123"},
		{"https://cdn.example.com/videos/clip.mp4", "clip"},
		{"https://cdn.example.com/nested/path/asset.jpeg", "asset"},
		{"https://cdn.example.com/no-extension", "no-extension"},
		{"https://cdn.example.com/trailing/slash/", "slash"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := PublicID(tc.url); got != tc.want {
			t.Errorf("PublicID(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
