package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanStripsMarkup(t *testing.T) {
	s := New()

	assert.Equal(t, "Laptop kapot", s.Clean("<script>alert(1)</script>Laptop kapot"))
	assert.Equal(t, "Scherm blijft zwart", s.Clean("<b>Scherm</b> blijft zwart"))
	assert.Equal(t, "klik hier", s.Clean(`<a href="https://evil.example">klik hier</a>`))
}

func TestCleanTrimsWhitespace(t *testing.T) {
	s := New()

	assert.Equal(t, "Laptop start niet op", s.Clean("  Laptop start niet op  "))
	assert.Equal(t, "", s.Clean("   "))
	assert.Equal(t, "", s.Clean("<img src=x onerror=alert(1)>"))
}

func TestCleanKeepsPlainText(t *testing.T) {
	s := New()

	in := "Mijn laptop blijft hangen op het opstartscherm."
	assert.Equal(t, in, s.Clean(in))
}
