// Package fiscal classifica e extrai documentos fiscais eletrônicos (NF-e,
// CT-e, NFS-e e eventos de cancelamento) a partir do XML bruto.
//
// É uma biblioteca de transformação pura: recebe o documento completo em
// memória, devolve registros tipados ou um *ParseError, e não faz I/O nem
// logging. Extração é tudo-ou-nada por documento: nunca sai nota parcial.
// Chamadas separadas não compartilham estado, então um lote pode ser
// parseado com qualquer paralelismo.
package fiscal

// MotivoNFSe é a razão fixa devolvida quando o documento é uma NFS-e,
// que não passa por extração de campos.
const MotivoNFSe = "NFS-e"

// ParseInvoiceXML é a porta de entrada pros chamadores que só esperam nota:
// NFS-e volta marcada como ignorada sem nenhuma extração; qualquer outro
// documento passa pelo extrator de NF-e.
func ParseInvoiceXML(raw string) (*ParsedInvoice, error) {
	root, perr := parseTree(raw)
	if perr != nil {
		return nil, perr
	}

	if isNFSe(root) {
		return &ParsedInvoice{Ignorada: true, MotivoIgnorar: MotivoNFSe}, nil
	}

	return extractInvoice(root)
}

// ParseUploadXML é a porta de entrada do upload genérico: classifica entre
// os quatro tipos e devolve a união etiquetada correspondente.
func ParseUploadXML(raw string) (*ParseResult, error) {
	root, perr := parseTree(raw)
	if perr != nil {
		return nil, perr
	}

	kind, evento := classify(root)

	switch kind {
	case KindNFSe:
		return &ParseResult{Kind: KindNFSe}, nil

	case KindCancelamento:
		return &ParseResult{Kind: KindCancelamento, Cancelamento: evento}, nil

	case KindCTe:
		cte, err := extractCTe(root)
		if err != nil {
			return nil, err
		}
		return &ParseResult{Kind: KindCTe, CTe: cte}, nil

	default:
		inv, err := extractInvoice(root)
		if err != nil {
			return nil, err
		}
		return &ParseResult{Kind: KindInvoice, Invoice: inv}, nil
	}
}
