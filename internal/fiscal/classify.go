package fiscal

import (
	"strings"

	"github.com/beevik/etree"
)

// ============================================================================
// Classificador estrutural
//
// A ordem importa (igual ao registro de adapters: do mais específico pro mais
// genérico): um nó de evento pode morar dentro de uma raiz que também parece
// envelope de NF-e, então cancelamento é detectado antes de tentar extrair
// nota. NFS-e curto-circuita tudo: nenhum campo é extraído.
// ============================================================================

// Marcadores de NFS-e que aparecem como wrapper um nível abaixo da raiz
// (cada prefeitura/provedor embrulha de um jeito).
var nfseWrapperTags = []string{
	"CompNfse",
	"ListaNfse",
	"Nfse",
	"InfNfse",
	"Rps",
}

// classify inspeciona a raiz e os marcadores conhecidos e decide o tipo.
// Pra CANCELLATION a varredura já produz o evento selecionado, evitando
// escanear duas vezes.
func classify(root *etree.Element) (DocKind, *EventoCancelamento) {
	if isNFSe(root) {
		return KindNFSe, nil
	}

	if ev := extractEvento(root); ev != nil {
		return KindCancelamento, ev
	}

	if tagContains(root, "cte") {
		return KindCTe, nil
	}

	return KindInvoice, nil
}

func isNFSe(root *etree.Element) bool {
	lower := strings.ToLower(root.Tag)

	// Raiz com marcador de serviço, desde que não seja envelope de NF-e
	// (ex.: "nfeProc" contém "nfe" mas não "nfse").
	if strings.Contains(lower, "nfse") && !strings.Contains(lower, "nfeproc") {
		return true
	}

	// Wrapper de NFS-e um nível abaixo da raiz.
	for _, tag := range nfseWrapperTags {
		if child(root, tag) != nil {
			return true
		}
	}

	return false
}
