package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"Hello, World!", "hello-world"},
		{"Testing 123", "testing-123"},
		{"Multiple   Spaces", "multiple-spaces"},
		{"Special@#Characters!", "specialcharacters"},
		{"---Dashes---", "dashes"},
		{"My New Title!!", "my-new-title"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.input))
		})
	}
}

func TestSlugify_Deterministic(t *testing.T) {
	assert.Equal(t, Slugify("Best Running Shoes"), Slugify("Best Running Shoes"))
}

func TestUniqueSlug(t *testing.T) {
	assert.Equal(t, "hello-world", UniqueSlug("Hello World", nil))
	assert.Equal(t, "hello-world-1", UniqueSlug("Hello World", []string{"hello-world"}))
	assert.Equal(t, "hello-world-2", UniqueSlug("Hello World", []string{"hello-world", "hello-world-1"}))
}

func TestUniqueSlug_SkipsGaps(t *testing.T) {
	existing := []string{"post", "post-1", "post-3"}
	assert.Equal(t, "post-2", UniqueSlug("Post", existing))
}
