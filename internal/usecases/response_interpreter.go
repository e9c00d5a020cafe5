package usecases

import (
	"bytes"
	"encoding/json"

	"gartenconnect/internal/entities"
	"gartenconnect/internal/metrics"
)

// FallbackReply is sent when the classifier answer has no recognizable shape
const FallbackReply = "⚠️ Error procesando tu mensaje, inténtalo más tarde."

// Interpret resolves a classifier reply into a typed response. Only the shape
// of the payload decides the outcome, first match wins:
// array, {top,bottom}, string, {detail}, fallback. A product that cannot be
// decoded is skipped; the rest of the answer is kept.
func Interpret(reply entities.BackendReply) entities.ClassifierResponse {
	if reply.Failed {
		return entities.ClassifierResponse{Kind: entities.ResponseDiagnostic, Detail: reply.Diagnostic}
	}

	payload := bytes.TrimSpace(reply.Payload)
	if len(payload) == 0 {
		return plainText(FallbackReply)
	}

	switch payload[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(payload, &elems); err != nil {
			return plainText(FallbackReply)
		}
		var items []entities.Product
		for _, elem := range elems {
			if p := decodeProduct(elem); p != nil {
				items = append(items, *p)
			}
		}
		if len(items) == 0 && len(elems) > 0 {
			return plainText(FallbackReply)
		}
		return entities.ClassifierResponse{Kind: entities.ResponseProductList, Items: items}

	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(payload, &fields); err != nil {
			return plainText(FallbackReply)
		}
		rawTop, hasTop := fields["top"]
		rawBottom, hasBottom := fields["bottom"]
		if hasTop && hasBottom {
			top, bottom := decodeProduct(rawTop), decodeProduct(rawBottom)
			if top == nil && bottom == nil {
				return plainText(FallbackReply)
			}
			return entities.ClassifierResponse{Kind: entities.ResponseProductPair, Top: top, Bottom: bottom}
		}
		if rawDetail, ok := fields["detail"]; ok {
			return plainText(entities.DetailText(rawDetail))
		}

	case '"':
		var s string
		if err := json.Unmarshal(payload, &s); err == nil {
			return plainText(s)
		}
	}

	return plainText(FallbackReply)
}

func decodeProduct(raw json.RawMessage) *entities.Product {
	var p entities.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		metrics.MalformedProducts.Inc()
		return nil
	}
	return &p
}

func plainText(text string) entities.ClassifierResponse {
	return entities.ClassifierResponse{Kind: entities.ResponsePlainText, Text: text}
}
