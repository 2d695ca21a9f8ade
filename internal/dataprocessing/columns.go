package dataprocessing

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"ocrdash/pkg/contracts/domain"
)

// headerAliases lists every header spelling the historical dashboards used,
// per canonical field. Matching is exact after foldText, never fuzzy.
var headerAliases = map[domain.Field][]string{
	domain.FieldTestID: {
		"test_id", "test id", "test", "id", "teste", "id teste", "id do teste", "cenário", "cenario",
	},
	domain.FieldTemperature: {
		"temperature", "temperatura", "temp",
	},
	domain.FieldTopP: {
		"top_p", "top p", "top-p", "topp",
	},
	domain.FieldQuestion: {
		"question", "questions", "pergunta", "perguntas", "campo", "prompt",
	},
	domain.FieldExtractedValue: {
		"extracted_value", "extracted value", "valor extraído", "valor extraido", "valor",
		"resposta", "resposta extraída", "extração", "nome do comprador",
	},
	domain.FieldStatus: {
		"status", "correto (✓/x)", "correto (✓ / x)", "correto", "resultado", "avaliação",
	},
	domain.FieldNote: {
		"note", "notes", "motivo erro / observação", "motivo erro", "observação", "observações",
		"observacao", "erro", "comentário",
	},
	domain.FieldTimestamp: {
		"timestamp", "date", "data", "data do teste", "dia",
	},
}

var aliasIndex = buildAliasIndex()

func buildAliasIndex() map[string]domain.Field {
	idx := make(map[string]domain.Field)
	for field, aliases := range headerAliases {
		for _, a := range aliases {
			idx[foldText(a)] = field
		}
	}
	return idx
}

// NormalizeHeader maps a raw header cell onto its canonical field.
// Surrounding whitespace, Unicode composition and letter case are ignored.
func NormalizeHeader(header string) (domain.Field, bool) {
	f, ok := aliasIndex[foldText(header)]
	return f, ok
}

// foldText trims, NFC-normalises and case-folds s. A Caser is stateful, so a
// fresh one is built per call.
func foldText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Fold().String(norm.NFC.String(s))
}

// headerMapping is the resolved layout of a header row.
type headerMapping struct {
	index   map[domain.Field]int
	source  map[domain.Field]string
	ignored []string
	dups    []string
}

func mapHeader(row []string) headerMapping {
	m := headerMapping{
		index:  make(map[domain.Field]int),
		source: make(map[domain.Field]string),
	}
	for i, cell := range row {
		if strings.TrimSpace(cell) == "" {
			continue
		}
		field, ok := NormalizeHeader(cell)
		if !ok {
			m.ignored = append(m.ignored, cell)
			continue
		}
		if _, seen := m.index[field]; seen {
			m.dups = append(m.dups, cell)
			continue
		}
		m.index[field] = i
		m.source[field] = cell
	}
	return m
}

// missing returns the required fields the mapping does not resolve, in the given order.
func (m headerMapping) missing(required []domain.Field) []domain.Field {
	var out []domain.Field
	for _, f := range required {
		if _, ok := m.index[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}
