package groups

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveNames(t *testing.T) {
	names := DeriveNames("Firefox", "2.0", "default")
	assert.Equal(t, "Firefox-AutoPkg-2.0", names.PreInstall)
	assert.Equal(t, "Firefox-AutoPkg-2.0-Complete", names.PostInstall)
}

func TestDeriveNamesOverride(t *testing.T) {
	names := DeriveNames("Firefox", "2.0", "Ops-Firefox")
	assert.Equal(t, "Ops-Firefox", names.PreInstall)
	assert.Equal(t, "Ops-Firefox-Complete", names.PostInstall)
}

func TestDeriveNamesDeterministic(t *testing.T) {
	first := DeriveNames("Foo", "1.2.3", "")
	second := DeriveNames("Foo", "1.2.3", "")
	assert.Equal(t, first, second)
}
