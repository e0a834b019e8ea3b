package cfop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Venda de mercadoria adquirida ou recebida de terceiros", Describe("5102"))
	assert.Equal(t, "Outra saída de mercadoria não especificada", Describe("5949"))
	assert.Equal(t, "", Describe("0000"))
	assert.Equal(t, "", Describe(""))
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("5102"))
	assert.True(t, Known("5353"))
	assert.False(t, Known("9999"))
}
