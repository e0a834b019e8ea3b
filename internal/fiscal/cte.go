package fiscal

import (
	"strings"

	"github.com/beevik/etree"
)

// ============================================================================
// Extrator de CT-e, estruturalmente paralelo ao da NF-e, sem regra de
// nota ignorada.
// ============================================================================

// Status de protocolo que marcam o CT-e como cancelado.
var cancelledCTeStatus = map[string]bool{
	"101": true,
	"135": true,
}

var infCtePaths = [][]string{
	{"CTe", "infCte"},
	{"infCte"},
}

var protCTePaths = [][]string{
	{"protCTe", "infProt"},
	{"cteProc", "protCTe", "infProt"},
}

func extractCTe(root *etree.Element) (*ParsedCTe, error) {
	cte, err := extractCTeInner(root)
	if err != nil {
		return nil, wrapLayout(err)
	}
	return cte, nil
}

func extractCTeInner(root *etree.Element) (*ParsedCTe, error) {
	inf := findFirst(root, infCtePaths)
	if inf == nil && root.Tag == "infCte" {
		inf = root
	}
	if inf == nil {
		return nil, newParseError(CodeMissingInfCte, "bloco infCte não encontrado em nenhum caminho conhecido")
	}

	prot := findFirst(root, protCTePaths)

	cte := &ParsedCTe{}

	chave := normalizeTaxKey(childText(prot, "chCTe"))
	if chave == "" {
		chave = normalizeTaxKey(strings.TrimPrefix(attr(inf, "Id"), "CTe"))
	}
	if chave == "" {
		return nil, newParseError(CodeMissingInfCte, "chave de acesso ausente (sem protocolo e sem atributo Id)")
	}
	cte.Chave = chave

	ide := child(inf, "ide")

	emissao, perr := parseDate(firstNonEmpty(childText(ide, "dhEmi"), childText(ide, "dEmi")), "emissao")
	if perr != nil {
		return nil, perr
	}
	cte.Emissao = emissao

	cte.Numero = childText(ide, "nCT")
	cte.Serie = childText(ide, "serie")
	cte.CFOP = childText(ide, "CFOP")

	cte.NatOp = childText(ide, "natOp")
	if cte.NatOp == "" {
		return nil, layoutErr("natureza de operação (natOp) ausente")
	}

	emit := child(inf, "emit")
	cte.EmitenteCNPJ = normalizeTaxID(firstNonEmpty(childText(emit, "CNPJ"), childText(emit, "CPF")))
	if cte.EmitenteCNPJ == "" {
		return nil, layoutErr("CNPJ/CPF do emitente ausente ou inválido")
	}
	cte.EmitenteRazao = childText(emit, "xNome")
	cte.EmitenteMunicipio = childText(emit, "enderEmit", "xMun")
	cte.EmitenteUF = childText(emit, "enderEmit", "UF")

	dest := child(inf, "dest")
	cte.DestCNPJ = normalizeTaxID(firstNonEmpty(childText(dest, "CNPJ"), childText(dest, "CPF")))
	if cte.DestCNPJ == "" {
		return nil, layoutErr("CNPJ/CPF do destinatário ausente ou inválido")
	}
	cte.DestRazao = childText(dest, "xNome")
	cte.DestMunicipio = childText(dest, "enderDest", "xMun")
	cte.DestUF = childText(dest, "enderDest", "UF")

	// Valor da prestação é obrigatório; valor a receber é opcional.
	valor, perr := normalizeDecimal(childText(inf, "vPrest", "vTPrest"), "valor_prestacao")
	if perr != nil {
		return nil, perr
	}
	cte.ValorPrestacao = valor

	if cte.ValorReceber, perr = optionalDecimal(childText(inf, "vPrest", "vRec"), "valor_receber"); perr != nil {
		return nil, perr
	}

	// Carga: peso e unidade de medida saem do primeiro infQ. Alguns emissores
	// pulam o wrapper infCTeNorm.
	infQ := findFirst(inf, [][]string{
		{"infCTeNorm", "infCarga", "infQ"},
		{"infCarga", "infQ"},
	})
	if infQ != nil {
		if cte.PesoCarga, perr = optionalDecimal(childText(infQ, "qCarga"), "peso_carga"); perr != nil {
			return nil, perr
		}
		cte.UnidadePeso = childText(infQ, "tpMed")
	}

	if prot != nil {
		cte.Protocolo = &Protocolo{
			CodigoStatus: childText(prot, "cStat"),
			Motivo:       childText(prot, "xMotivo"),
			Numero:       childText(prot, "nProt"),
			RecebidoEm:   parseDateTime(childText(prot, "dhRecbto")),
		}
		cte.Cancelada = cancelledCTeStatus[cte.Protocolo.CodigoStatus]
	}

	return cte, nil
}
