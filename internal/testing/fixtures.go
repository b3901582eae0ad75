package testing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bene2386/Conta-Azul/internal/clients/contaazul"
)

// NewReceivableFixtures returns count receivables due in the given month,
// shaped like Conta Azul search results. Ids are "<YYYY-MM>-<n>" and the
// n-th item totals n*10.
func NewReceivableFixtures(year int, month time.Month, count int) []contaazul.Record {
	records := make([]contaazul.Record, 0, count)
	due := time.Date(year, month, 10, 0, 0, 0, 0, time.UTC)

	for n := 1; n <= count; n++ {
		records = append(records, MustRecord(map[string]interface{}{
			"id":              fmt.Sprintf("%s-%d", due.Format("2006-01"), n),
			"descricao":       fmt.Sprintf("Parcela %d", n),
			"data_vencimento": due.Format(time.DateOnly),
			"status":          "EM_ABERTO",
			"total":           n * 10,
			"cliente": map[string]interface{}{
				"nome": "Cliente " + due.Format("Jan"),
			},
		}))
	}
	return records
}

// MustRecord builds a Record from fields and panics when they do not encode
// to a JSON object.
func MustRecord(fields map[string]interface{}) contaazul.Record {
	raw, err := json.Marshal(fields)
	if err != nil {
		panic(err)
	}
	record, err := contaazul.NewRecord(raw)
	if err != nil {
		panic(err)
	}
	return record
}
