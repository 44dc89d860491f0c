package fingerprint

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash(t *testing.T) {
	a := "the quick brown fox jumps over the lazy dog"
	assert.Equal(t, Hash(a), Hash(a))
	assert.LessOrEqual(t, Distance(Hash(a), Hash("the quick brown fox leaps over the lazy dog")), 10)
	assert.GreaterOrEqual(t, Distance(Hash(a), Hash("completely unrelated content about quantum physics and mathematics")), 5)
	assert.Zero(t, Hash(""))
	assert.Zero(t, Hash(" \t\n "))
	assert.NotZero(t, Hash("hello"))
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0xFF, 0xFF, 0},
		{"all different", 0, ^uint64(0), 64},
		{"one bit", 0, 1, 1},
		{"two bits", 0, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Distance(tt.a, tt.b))
		})
	}
	assert.True(t, Similar(0, 3, 2))
	assert.False(t, Similar(0, 7, 2))
}

func grid(tileClass string, names ...string) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Shirts</title><script>var x = 1;</script></head><body>`)
	b.WriteString(`<header class="site-header"><nav class="menu"><a href="/">Home</a></nav></header>`)
	b.WriteString(`<main class="listing"><ul class="grid">`)
	for _, n := range names {
		fmt.Fprintf(&b, `<li class="%s"><a class="link" href="/p/%s"><img class="media" src="/%s.jpg"><span class="name">%s</span><span class="price">£9.99</span></a></li>`, tileClass, n, n, n)
	}
	b.WriteString(`</ul></main><footer class="site-footer"><p>©</p></footer></body></html>`)
	return b.String()
}

func TestLayoutIgnoresContent(t *testing.T) {
	a := Layout(grid("product-tile", "oxford", "linen", "denim"))
	b := Layout(grid("product-tile", "poplin", "flannel", "chambray"))
	assert.Equal(t, a, b)
}

func TestLayoutDetectsRedesign(t *testing.T) {
	before := Layout(grid("product-tile", "oxford", "linen", "denim", "poplin"))
	after := Layout(`<html><body><div class="app"><section class="results"><article class="card"><div class="card-media"></div></article></section></div></body></html>`)
	assert.Greater(t, Distance(before, after), 10)
}

func TestLayoutEmpty(t *testing.T) {
	assert.Zero(t, Layout(""))
	assert.Zero(t, Layout("just text"))
	assert.NotZero(t, Layout("<div></div>"))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Shirts", Title(grid("t", "a")))
	assert.Equal(t, "Fish & Chips", Title(`<head><title> Fish &amp; Chips </title></head>`))
	assert.Equal(t, "", Title(`<head><title></title></head>`))
	assert.Equal(t, "", Title(`<p>no title</p>`))
}

func TestBaselines(t *testing.T) {
	b := NewBaselines()
	assert.False(t, b.Drifted("www.example.com", 0xFFFF, 4), "no baseline yet")

	b.Record("www.example.com", 0xFF)
	b.Record("www.example.com", 0)
	assert.False(t, b.Drifted("www.example.com", 0xFE, 4))
	assert.True(t, b.Drifted("www.example.com", 0xFF00, 4))
	assert.False(t, b.Drifted("www.example.com", 0, 4))
	assert.False(t, b.Drifted("other.example.com", 0xFF00, 4))
}
