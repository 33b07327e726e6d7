package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertLookup(t *testing.T) {
	c := New()
	c.Insert("text", "page.title@en", "Welcome")
	v, ok := c.Lookup("text", "page.title@en")
	assert.True(t, ok)
	assert.Equal(t, "Welcome", v)
}

func TestLookupMiss(t *testing.T) {
	c := New()
	_, ok := c.Lookup("text", "missing")
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	c := New()
	c.Insert("text", "x", "v1")
	assert.True(t, c.Remove("text", "x"))
	_, ok := c.Lookup("text", "x")
	assert.False(t, ok)
	assert.False(t, c.Remove("text", "x"))
}

func TestListPreservesInsertionOrder(t *testing.T) {
	c := New()
	c.Insert("text", "b", "2")
	c.Insert("text", "a", "1")
	c.Insert("text", "c", "3")
	assert.Equal(t, []string{"b", "a", "c"}, c.List("text", ""))
}

func TestListWithGlobPattern(t *testing.T) {
	c := New()
	c.Insert("text", "page.title@en", "a")
	c.Insert("text", "page.title@de", "b")
	c.Insert("text", "page.body@en", "c")
	got := c.List("text", "page.title@*")
	assert.ElementsMatch(t, []string{"page.title@en", "page.title@de"}, got)
}

func TestReloadReplacesContents(t *testing.T) {
	c := New()
	c.Insert("text", "stale", "v")
	c.Reload("text", [][2]string{{"x", "1"}, {"y", "2"}})
	_, ok := c.Lookup("text", "stale")
	assert.False(t, ok)
	v, ok := c.Lookup("text", "x")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, []string{"x", "y"}, c.List("text", ""))
}

func TestTablesSortedAlphabetically(t *testing.T) {
	c := New()
	c.Insert("routes", "a", "1")
	c.Insert("meta", "b", "2")
	c.Insert("text", "c", "3")
	assert.Equal(t, []string{"meta", "routes", "text"}, c.Tables())
}

func TestConcurrentReadsDoNotBlock(t *testing.T) {
	c := New()
	c.Insert("text", "x", "v1")
	done := make(chan struct{})
	for i := 0; i < 16; i++ {
		go func() {
			for j := 0; j < 1000; j++ {
				c.Lookup("text", "x")
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 16; i++ {
		<-done
	}
}
