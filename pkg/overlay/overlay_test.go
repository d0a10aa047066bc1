package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	base := map[string]bool{"push": true, "email": true}
	override := map[string]bool{"push": false, "chatMessages": false}

	got := Resolve(base, override)

	assert.Equal(t, map[string]bool{"push": false, "email": true, "chatMessages": false}, got)
	assert.True(t, base["push"], "base must not be modified")
	assert.Len(t, override, 2)
}

func TestResolveNilOverride(t *testing.T) {
	base := map[string]string{"type": "chat"}

	got := Resolve(base, nil)
	got["type"] = "changed"

	assert.Equal(t, "chat", base["type"])
}

func TestResolveTree(t *testing.T) {
	base := map[string]any{
		"title": "Laundry",
		"hours": map[string]any{"mon": "8-18", "sun": "closed"},
	}
	override := map[string]any{
		"hours": map[string]any{"sun": "10-14"},
		"phone": "555",
	}

	got := ResolveTree(base, override)

	assert.Equal(t, map[string]any{
		"title": "Laundry",
		"phone": "555",
		"hours": map[string]any{"mon": "8-18", "sun": "10-14"},
	}, got)
	assert.Equal(t, "closed", base["hours"].(map[string]any)["sun"])
}

func TestResolveTreeScalarReplacesMap(t *testing.T) {
	base := map[string]any{"hours": map[string]any{"mon": "8-18"}}
	override := map[string]any{"hours": "by appointment"}

	got := ResolveTree(base, override)

	assert.Equal(t, "by appointment", got["hours"])
}
