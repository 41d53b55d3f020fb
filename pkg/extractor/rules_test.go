package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"cdn jpg", "https://image.msscdn.net/images/goods_img/20230101/1234567/1234567_1_500.jpg", true},
		{"musinsa png with query", "https://image.musinsa.com/mfile_s01/2023/1234567.png?v=3", true},
		{"protocol relative", "//image.msscdn.net/images/goods_img/1234567.webp", true},
		{"uppercase extension", "https://image.msscdn.net/images/goods_img/1234567.JPEG", true},
		{"data uri", "data:image/png;base64,iVBORw0KGgo=", false},
		{"foreign host", "https://cdn.example.com/images/1234567.jpg", false},
		{"host only in path", "https://evil.example.com/msscdn.net/1234567.jpg", false},
		{"logo", "https://image.msscdn.net/images/logo/musinsa.png", false},
		{"banner", "https://image.msscdn.net/display/banner_main.jpg", false},
		{"icon", "https://image.msscdn.net/skin/icon_cart.png", false},
		{"sprite", "https://image.msscdn.net/skin/sprite.png", false},
		{"no image format", "https://image.msscdn.net/images/goods_img/1234567", false},
		{"tiny icon size", "https://image.msscdn.net/images/goods_img/32x32/1234567.jpg", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValid(tt.url))
		})
	}
}

func TestUpgradeAppliesFirstRuleOnly(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://image.msscdn.net/thumb/123_150.jpg", "https://image.msscdn.net/large/123_150.jpg"},
		{"https://image.msscdn.net/small/123.jpg", "https://image.msscdn.net/origin/123.jpg"},
		{"https://image.msscdn.net/goods/123_thumb.jpg", "https://image.msscdn.net/goods/123_large.jpg"},
		{"https://image.msscdn.net/goods/300/123.jpg", "https://image.msscdn.net/goods/800/123.jpg"},
		{"https://image.msscdn.net/goods/123_150.jpg", "https://image.msscdn.net/goods/123_500.jpg"},
		{"https://image.msscdn.net/goods/123_300.png", "https://image.msscdn.net/goods/123_800.png"},
		{"https://image.msscdn.net/goods/123_500.jpg", "https://image.msscdn.net/goods/123_500.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Upgrade(tt.in))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t,
		"https://image.msscdn.net/large/123_150.jpg",
		Normalize("//image.msscdn.net/thumb/123_150.jpg?w=120#top"))

	// raw URLs differing only in query collapse to one key
	assert.Equal(t,
		Normalize("https://image.msscdn.net/goods/1234567_500.jpg?v=1"),
		Normalize("https://image.msscdn.net/goods/1234567_500.jpg?v=2"))
}

func TestSetKeepsDiscoveryOrder(t *testing.T) {
	s := NewSet()
	assert.True(t, s.Add(Asset{NormalizedURL: "b"}))
	assert.True(t, s.Add(Asset{NormalizedURL: "a"}))
	assert.False(t, s.Add(Asset{NormalizedURL: "b", Source: "script"}))
	assert.True(t, s.Add(Asset{NormalizedURL: "c"}))

	assert.Equal(t, 3, s.Len())

	all := s.Assets(0)
	assert.Equal(t, []string{"b", "a", "c"}, []string{all[0].NormalizedURL, all[1].NormalizedURL, all[2].NormalizedURL})
	assert.Empty(t, all[0].Source)

	assert.Len(t, s.Assets(2), 2)
	assert.Len(t, s.Assets(10), 3)
}
