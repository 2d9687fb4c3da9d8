package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const menuOrder = `¡Hola! Quiero hacer este pedido:

1x Frappé - $45.00
2x Bubble Tea - $90.00

Total del pedido: $173.00
Gracias`

func TestExtractOrderInfo(t *testing.T) {
	info := ExtractOrderInfo(menuOrder)
	assert.Equal(t, 173.0, info.Total)
	assert.Equal(t, "1x Frappé - $45.00\n2x Bubble Tea - $90.00", info.Summary)
}

func TestExtractOrderInfoTotalVariants(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		total float64
	}{
		{"a pagar", "Pedido\n1x Té - $30\nTOTAL A PAGAR: $1,250.50", 1250.50},
		{"no currency sign", "Pedido\n1x Té - $30\nTotal del pedido: 30", 30},
		{"missing total", "Pedido\n1x Té - $30\nGracias\nAdiós", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.total, ExtractOrderInfo(tt.text).Total)
		})
	}
}

func TestExtractOrderInfoSkipsNonItemLines(t *testing.T) {
	text := "Pedido web\nCliente: Ana\n1x Frappé - $45.00\nEnvío - $30.00\nTotal a pagar: $75.00"
	info := ExtractOrderInfo(text)
	assert.Equal(t, "1x Frappé - $45.00\nEnvío - $30.00", info.Summary)
}

func TestExtractOrderInfoFallback(t *testing.T) {
	text := "Pedido\n1x Frappé\n2x Té\nGracias\nAdiós"
	info := ExtractOrderInfo(text)
	assert.Equal(t, 0.0, info.Total)
	assert.Equal(t, "1x Frappé\n2x Té", info.Summary)
}

func TestExtractItems(t *testing.T) {
	text := "Pedido web\n1x Frappé - $45.00\n2 x Bubble Tea - $90.00\nEnvío - $30.00\nTotal del pedido: $165.00"
	assert.Equal(t, "1x Frappé - $45.00\n2 x Bubble Tea - $90.00", ExtractItems(text))
}

func TestHasCompletionMarker(t *testing.T) {
	assert.True(t, HasCompletionMarker(menuOrder))
	assert.True(t, HasCompletionMarker("Total a pagar: $10"))
	assert.False(t, HasCompletionMarker("quiero un frappé"))
}
