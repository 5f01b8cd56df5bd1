package reqctx

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_SetGet(t *testing.T) {
	c := New()
	_, ok := c.Get(FieldIdentifier)
	assert.False(t, ok)

	c.Set(FieldIdentifier, "cat.jpg")
	v, ok := c.Get(FieldIdentifier)
	assert.True(t, ok)
	assert.Equal(t, "cat.jpg", v)
}

func TestContext_GetString(t *testing.T) {
	c := New()
	assert.Equal(t, "", c.GetString(FieldLocalURI))

	c.Set(FieldLocalURI, "/data/cat.jpg")
	assert.Equal(t, "/data/cat.jpg", c.GetString(FieldLocalURI))

	c.Set(FieldFullWidth, 64) // wrong type for GetString
	assert.Equal(t, "", c.GetString(FieldFullWidth))
}

func TestContext_Overwrite(t *testing.T) {
	c := New()
	c.Set(FieldPageCount, 1)
	c.Set(FieldPageCount, 2)
	v, _ := c.Get(FieldPageCount)
	assert.Equal(t, 2, v)
}

func TestContext_AsMapIsLiveView(t *testing.T) {
	c := New()
	c.Set(FieldFullWidth, 100)

	view := c.AsMap()
	v, ok := view.Get(FieldFullWidth)
	assert.True(t, ok)
	assert.Equal(t, 100, v)

	// a write made after the view was taken must be visible through the
	// same view on a later call, per the live-view invariant
	c.Set(FieldFullWidth, 200)
	v, ok = view.Get(FieldFullWidth)
	assert.True(t, ok)
	assert.Equal(t, 200, v)

	// a field that didn't exist yet when the view was taken must also
	// become visible once set
	_, ok = view.Get(FieldFullHeight)
	assert.False(t, ok)
	c.Set(FieldFullHeight, 56)
	v, ok = view.Get(FieldFullHeight)
	assert.True(t, ok)
	assert.Equal(t, 56, v)
}

func TestContext_AsMapGetString(t *testing.T) {
	c := New()
	view := c.AsMap()
	assert.Equal(t, "", view.GetString(FieldLocalURI))

	c.Set(FieldLocalURI, "/data/cat.jpg")
	assert.Equal(t, "/data/cat.jpg", view.GetString(FieldLocalURI))
}

func TestContext_AsMapKeys(t *testing.T) {
	c := New()
	c.Set(FieldIdentifier, "cat.jpg")
	view := c.AsMap()
	assert.ElementsMatch(t, []string{FieldIdentifier}, view.Keys())

	c.Set(FieldPageCount, 3)
	assert.ElementsMatch(t, []string{FieldIdentifier, FieldPageCount}, view.Keys())
}

func TestContext_ConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Set(FieldMetadata, n)
		}(i)
		go func() {
			defer wg.Done()
			c.Get(FieldMetadata)
			c.AsMap()
		}()
	}
	wg.Wait()
}
