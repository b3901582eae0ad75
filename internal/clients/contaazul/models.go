package contaazul

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Record is one receivable ("conta a receber") as returned by the API.
// Raw is the verbatim JSON object; Fields is the same object decoded with
// numbers kept as json.Number.
type Record struct {
	Raw    json.RawMessage
	Fields map[string]interface{}
}

// NewRecord decodes a JSON object into a Record.
func NewRecord(raw json.RawMessage) (Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Record{}, fmt.Errorf("%w: item is not a JSON object", ErrUnexpectedResponse)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}

	return Record{Raw: json.RawMessage(trimmed), Fields: fields}, nil
}

// ID returns the API identifier, or "" when the record has none.
func (r Record) ID() string {
	return r.str("id")
}

// Key identifies the record for upserts: the API id when present, otherwise
// a content hash of the canonical JSON.
func (r Record) Key() string {
	if id := r.ID(); id != "" {
		return id
	}
	// json.Marshal sorts map keys, which makes the hash stable
	canonical, err := json.Marshal(r.Fields)
	if err != nil {
		canonical = r.Raw
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// DueDate returns data_vencimento as YYYY-MM-DD.
func (r Record) DueDate() string {
	due := r.str("data_vencimento")
	if len(due) > 10 {
		// Some payloads send a full timestamp
		due = due[:10]
	}
	return due
}

// Description returns descricao.
func (r Record) Description() string {
	return r.str("descricao")
}

// Status returns the installment status (e.g. EM_ABERTO, RECEBIDO).
func (r Record) Status() string {
	return r.str("status")
}

// Customer returns cliente.nome.
func (r Record) Customer() string {
	if cliente, ok := r.Fields["cliente"].(map[string]interface{}); ok {
		if nome, ok := cliente["nome"].(string); ok {
			return nome
		}
	}
	return r.str("nome_cliente")
}

// Amount returns the installment total. ok is false when the record carries
// no parseable amount.
func (r Record) Amount() (decimal.Decimal, bool) {
	for _, key := range []string{"total", "valor", "valor_total"} {
		value, present := r.Fields[key]
		if !present || value == nil {
			continue
		}

		var s string
		switch v := value.(type) {
		case json.Number:
			s = v.String()
		case string:
			s = strings.TrimSpace(v)
		default:
			continue
		}

		d, err := decimal.NewFromString(s)
		if err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}

func (r Record) str(key string) string {
	switch v := r.Fields[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
