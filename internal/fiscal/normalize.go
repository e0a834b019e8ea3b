package fiscal

import (
	"regexp"
	"strings"
	"time"
)

// ============================================================================
// Normalizadores de valor: decimais, datas e documentos (CPF/CNPJ)
//
// Regra geral: formato inválido é rejeitado com LAYOUT_UNSUPPORTED, nunca
// coergido em silêncio. A única exceção é timestamp avulso (parseDateTime),
// que é metadado e devolve nil em vez de erro.
// ============================================================================

var decimalRe = regexp.MustCompile(`^[-+]?\d+(\.\d+)?$`)

// normalizeDecimal apara, troca vírgula por ponto e valida o formato
// canônico. Idempotente: normalizar duas vezes dá a mesma string.
func normalizeDecimal(raw, field string) (string, *ParseError) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", layoutErr("campo decimal obrigatório ausente: %s", field)
	}
	v = strings.ReplaceAll(v, ",", ".")
	if !decimalRe.MatchString(v) {
		return "", layoutErr("valor decimal inválido em %s: %q", field, raw)
	}
	return v, nil
}

// optionalDecimal devolve "" quando o campo está ausente; formato inválido
// continua sendo erro.
func optionalDecimal(raw, field string) (string, *ParseError) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return normalizeDecimal(raw, field)
}

// decimalOrDefault cobre campos onde ausência significa um valor fixo
// (ex.: desconto ausente = "0").
func decimalOrDefault(raw, field, def string) (string, *ParseError) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	return normalizeDecimal(raw, field)
}

var compactDateRe = regexp.MustCompile(`^\d{8}$`)

// dateLayouts cobre os formatos de timestamp vistos nos emissores (4.00 usa
// dhEmi com offset; geradores antigos mandam dEmi ou datetime sem zona).
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// parseDate aceita data compacta (yyyymmdd), ISO (yyyy-mm-dd) ou timestamp
// parseável, e devolve meia-noite UTC. Campo obrigatório ausente ou
// ilegível é LAYOUT_UNSUPPORTED.
func parseDate(raw, field string) (time.Time, *ParseError) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return time.Time{}, layoutErr("data obrigatória ausente: %s", field)
	}

	if compactDateRe.MatchString(v) {
		if t, err := time.Parse("20060102", v); err == nil {
			return t.UTC(), nil
		}
		return time.Time{}, layoutErr("data inválida em %s: %q", field, raw)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}

	return time.Time{}, layoutErr("data inválida em %s: %q", field, raw)
}

// optionalDate é parseDate para campos que podem faltar; ausência vira nil.
func optionalDate(raw, field string) (*time.Time, *ParseError) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseDate(raw, field)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseDateTime é best-effort: timestamps são metadado, então ausência ou
// lixo devolvem nil em vez de abortar a extração.
func parseDateTime(raw string) *time.Time {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

// normalizeTaxID remove tudo que não é dígito e só aceita CPF (11) ou
// CNPJ (14). Qualquer outro comprimento devolve vazio.
func normalizeTaxID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 || len(digits) == 14 {
		return digits
	}
	return ""
}
