package fiscal

import (
	"strings"

	"github.com/beevik/etree"
)

// ============================================================================
// Extrator de eventos de cancelamento
//
// O mesmo evento chega em pelo menos cinco formatos: evento/retEvento soltos
// na raiz, um ou mais procEventoNFe com arrays paralelos, envelope envEvento,
// e retEnvEvento só com a ciência (sem o evento). A varredura enumera todos
// os locais plausíveis, monta um candidato por par evento+ciência e escolhe
// o canônico.
// ============================================================================

// Tipos de evento que caracterizam cancelamento (110111 = cancelamento,
// 110112 = cancelamento por substituição).
var cancelEventTypes = map[string]bool{
	"110111": true,
	"110112": true,
}

// Status de ciência que homologam o evento junto à SEFAZ.
var approvedEventStatus = map[string]bool{
	"135": true,
	"136": true,
	"155": true,
}

// eventoPair é um local de evento encontrado na varredura; a ciência (ret)
// pode estar ausente.
type eventoPair struct {
	evento *etree.Element
	ret    *etree.Element
}

// extractEvento varre a árvore e devolve o evento de cancelamento canônico,
// ou nil se nenhum candidato qualificar (o chamador segue pra NF-e/CT-e).
//
// Regra de seleção: vale o primeiro candidato encontrado, mas um candidato
// com status de homologação explícito da SEFAZ ganha na hora. Candidato
// aprovado só pela heurística de descrição (sem cStat nenhum) é escolha
// provisória: se mais adiante aparecer a ciência homologada, é ela que
// carrega cStat e nProt e é ela que vale.
func extractEvento(root *etree.Element) *EventoCancelamento {
	var first *EventoCancelamento

	for _, pair := range scanEventoLocations(root) {
		cand := buildCandidate(pair)
		if cand == nil {
			continue
		}
		if approvedEventStatus[cand.CodigoStatus] {
			return cand
		}
		if first == nil {
			first = cand
		}
	}

	return first
}

// scanEventoLocations enumera os pares evento+ciência em todos os formatos
// conhecidos, na ordem de precedência observada nos emissores.
func scanEventoLocations(root *etree.Element) []eventoPair {
	var pairs []eventoPair
	lowerRoot := strings.ToLower(root.Tag)

	switch {
	// raiz já é um procEvento: evento + retEvento em arrays paralelos
	case strings.Contains(lowerRoot, "procevento"):
		pairs = append(pairs, pairParallel(root)...)

	// a própria raiz é o evento, sem envelope nenhum
	case root.Tag == "evento" || root.Tag == "eventoCTe":
		pairs = append(pairs, eventoPair{evento: root, ret: child(root, "retEvento")})

	// envelope de envio (evento sem ciência)
	case strings.Contains(lowerRoot, "envevento") && !strings.Contains(lowerRoot, "ret"):
		for _, ev := range children(root, "evento") {
			pairs = append(pairs, eventoPair{evento: ev})
		}

	default:
		// wrappers procEventoNFe/procEventoCTe abaixo da raiz
		for _, c := range root.ChildElements() {
			if strings.Contains(strings.ToLower(c.Tag), "procevento") {
				pairs = append(pairs, pairParallel(c)...)
			}
		}

		// envelope envEvento abaixo da raiz
		for _, c := range root.ChildElements() {
			lc := strings.ToLower(c.Tag)
			if strings.Contains(lc, "envevento") && !strings.Contains(lc, "ret") {
				for _, ev := range children(c, "evento") {
					pairs = append(pairs, eventoPair{evento: ev})
				}
			}
		}

		// evento/retEvento soltos direto na raiz
		pairs = append(pairs, pairParallel(root)...)
	}

	// Ciência sem evento (retEnvEvento ou retEvento solto): o candidato
	// referencia o evento só pela posição, então sai da própria ciência.
	// Raiz que já entrou como nó de evento no switch acima não volta aqui,
	// senão o mesmo retEvento viraria um segundo candidato.
	rootIsEvento := root.Tag == "evento" || root.Tag == "eventoCTe"
	for _, holder := range []*etree.Element{root, child(root, "retEnvEvento")} {
		if holder == nil || len(children(holder, "evento")) > 0 {
			continue
		}
		if holder == root && rootIsEvento {
			continue
		}
		for _, ret := range children(holder, "retEvento") {
			pairs = append(pairs, eventoPair{ret: ret})
		}
	}

	return pairs
}

// pairParallel casa evento[i] com retEvento[i] dentro do mesmo wrapper;
// ciência faltante fica nil.
func pairParallel(el *etree.Element) []eventoPair {
	eventos := children(el, "evento")
	rets := children(el, "retEvento")

	var pairs []eventoPair
	for i, ev := range eventos {
		p := eventoPair{evento: ev}
		if i < len(rets) {
			p.ret = rets[i]
		}
		pairs = append(pairs, p)
	}
	return pairs
}

// buildCandidate monta o registro a partir de um par localizado. Devolve nil
// quando o par não caracteriza cancelamento ou não tem chave.
func buildCandidate(pair eventoPair) *EventoCancelamento {
	var infEv, infRet *etree.Element
	if pair.evento != nil {
		infEv = child(pair.evento, "infEvento")
	}
	if pair.ret != nil {
		infRet = child(pair.ret, "infEvento")
	}
	if infEv == nil && infRet == nil {
		return nil
	}

	ev := &EventoCancelamento{
		TipoEvento:      firstNonEmpty(childText(infEv, "tpEvento"), childText(infRet, "tpEvento")),
		Sequencia:       firstNonEmpty(childText(infEv, "nSeqEvento"), childText(infRet, "nSeqEvento")),
		CodigoStatus:    childText(infRet, "cStat"),
		Motivo:          childText(infRet, "xMotivo"),
		NumeroProtocolo: childText(infRet, "nProt"),
		DataEvento:      parseDateTime(childText(infEv, "dhEvento")),
		RecebidoEm:      parseDateTime(childText(infRet, "dhRegEvento")),
		Justificativa:   firstNonEmpty(childText(infEv, "detEvento", "xJust"), childText(infEv, "xJust")),
	}

	// Chave: evento primeiro, ciência como fallback; sem chave o candidato cai.
	ev.Chave = normalizeTaxKey(firstNonEmpty(
		childText(infEv, "chNFe"),
		childText(infEv, "chCTe"),
		childText(infRet, "chNFe"),
		childText(infRet, "chCTe"),
	))
	if ev.Chave == "" {
		return nil
	}

	// Descrição do evento: detEvento/descEvento no evento, xEvento na ciência.
	desc := firstNonEmpty(
		childText(infEv, "detEvento", "descEvento"),
		childText(infRet, "xEvento"),
	)
	descCancel := strings.Contains(strings.ToLower(desc), "cancel")

	// Qualifica como cancelamento pelo código do tipo OU pela descrição.
	if !cancelEventTypes[ev.TipoEvento] && !descCancel {
		return nil
	}

	// Homologado: status na lista de aceitos, OU descrição de cancelamento
	// sem nenhum status presente (emissores antigos não devolvem ciência).
	ev.Aprovado = approvedEventStatus[ev.CodigoStatus] ||
		(ev.CodigoStatus == "" && descCancel)

	return ev
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// normalizeTaxKey remove o que não é dígito da chave de acesso.
func normalizeTaxKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
