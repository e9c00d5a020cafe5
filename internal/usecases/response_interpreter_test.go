package usecases

import (
	"encoding/json"
	"testing"

	"gartenconnect/internal/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(s string) entities.BackendReply {
	return entities.BackendReply{Payload: json.RawMessage(s)}
}

func TestInterpretShapes(t *testing.T) {
	tests := []struct {
		name     string
		reply    entities.BackendReply
		wantKind entities.ResponseKind
		wantText string
	}{
		{name: "string", reply: payload(`"Hola, ¿qué buscas?"`), wantKind: entities.ResponsePlainText, wantText: "Hola, ¿qué buscas?"},
		{name: "detail string", reply: payload(`{"detail":"No encontré nada"}`), wantKind: entities.ResponsePlainText, wantText: "No encontré nada"},
		{name: "detail object", reply: payload(`{"detail": {"code": 4}}`), wantKind: entities.ResponsePlainText, wantText: `{"code":4}`},
		{name: "number", reply: payload(`42`), wantKind: entities.ResponsePlainText, wantText: FallbackReply},
		{name: "unknown object", reply: payload(`{"foo":1}`), wantKind: entities.ResponsePlainText, wantText: FallbackReply},
		{name: "only top", reply: payload(`{"top":{"name":"A"}}`), wantKind: entities.ResponsePlainText, wantText: FallbackReply},
		{name: "invalid json", reply: payload(`{"top":`), wantKind: entities.ResponsePlainText, wantText: FallbackReply},
		{name: "empty", reply: payload(``), wantKind: entities.ResponsePlainText, wantText: FallbackReply},
		{name: "null", reply: payload(`null`), wantKind: entities.ResponsePlainText, wantText: FallbackReply},
		{name: "bad list", reply: payload(`[1,2]`), wantKind: entities.ResponsePlainText, wantText: FallbackReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Interpret(tt.reply)
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.Equal(t, tt.wantText, resp.Text)
		})
	}
}

func TestInterpretDiagnostic(t *testing.T) {
	resp := Interpret(entities.BackendReply{Failed: true, Diagnostic: "rate limited"})

	assert.Equal(t, entities.ResponseDiagnostic, resp.Kind)
	assert.Equal(t, "rate limited", resp.Detail)
}

func TestInterpretProductList(t *testing.T) {
	resp := Interpret(payload(`[
		{"name":"Maceta","price":12.5,"link":"https://shop/1","images":["https://img/1a","https://img/1b"]},
		{"name":"Regadera","price":"9,99","link":"https://shop/2","images":"https://img/2"}
	]`))

	require.Equal(t, entities.ResponseProductList, resp.Kind)
	products := resp.Products()
	require.Len(t, products, 2)
	assert.Equal(t, "Maceta", products[0].Name)
	assert.Equal(t, []string{"https://img/1a", "https://img/1b"}, products[0].Images)
	assert.InDelta(t, 9.99, products[1].Price, 0.0001)
	assert.Equal(t, []string{"https://img/2"}, products[1].Images)
}

func TestInterpretPairWinsOverDetail(t *testing.T) {
	resp := Interpret(payload(`{
		"top":{"name":"Camisa","price":20,"link":"l1","images":[]},
		"bottom":{"name":"Pantalón","price":30,"link":"l2","images":[]},
		"detail":"ignored"
	}`))

	require.Equal(t, entities.ResponseProductPair, resp.Kind)
	products := resp.Products()
	require.Len(t, products, 2)
	assert.Equal(t, "Camisa", products[0].Name)
	assert.Equal(t, "Pantalón", products[1].Name)
}

func TestInterpretListKeepsValidProducts(t *testing.T) {
	resp := Interpret(payload(`[
		{"name":"Maceta","price":10,"link":"https://shop/1","images":["https://img/1"]},
		{"name":"Regadera","price":"19.99 EUR","link":"https://shop/2","images":"https://img/2"},
		{"name":"Roto","images":42},
		{"name":"Tijeras","price":"$10","link":"https://shop/3","images":[]}
	]`))

	require.Equal(t, entities.ResponseProductList, resp.Kind)
	products := resp.Products()
	require.Len(t, products, 3)
	assert.Equal(t, "Maceta", products[0].Name)
	assert.Equal(t, "Regadera", products[1].Name)
	assert.Equal(t, "19.99 EUR", products[1].PriceText)
	assert.Equal(t, "Tijeras", products[2].Name)
	assert.Equal(t, "$10", products[2].PriceText)
}

func TestInterpretPairWithOneBrokenSide(t *testing.T) {
	t.Run("odd price is kept", func(t *testing.T) {
		resp := Interpret(payload(`{
			"top":{"name":"Camisa","price":"$10","link":"l1","images":[]},
			"bottom":{"name":"Pantalón","price":30,"link":"l2","images":[]}
		}`))

		require.Equal(t, entities.ResponseProductPair, resp.Kind)
		products := resp.Products()
		require.Len(t, products, 2)
		assert.Equal(t, "$10", products[0].PriceText)
	})

	t.Run("undecodable side is dropped", func(t *testing.T) {
		resp := Interpret(payload(`{
			"top":{"name":"Camisa","images":42},
			"bottom":{"name":"Pantalón","price":30,"link":"l2","images":[]}
		}`))

		require.Equal(t, entities.ResponseProductPair, resp.Kind)
		products := resp.Products()
		require.Len(t, products, 1)
		assert.Equal(t, "Pantalón", products[0].Name)
	})

	t.Run("both sides broken", func(t *testing.T) {
		resp := Interpret(payload(`{"top":1,"bottom":"x"}`))

		assert.Equal(t, entities.ResponsePlainText, resp.Kind)
		assert.Equal(t, FallbackReply, resp.Text)
	})
}
