package fiscal

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ============================================================================
// Extrator de NF-e
// ============================================================================

// Status de protocolo que marcam a nota como cancelada (101 = cancelamento
// homologado, 135/151/155 = eventos de cancelamento registrados).
var cancelledNFeStatus = map[string]bool{
	"101": true,
	"135": true,
	"151": true,
	"155": true,
}

// Regra de negócio: notas de remessa simbólica (CFOP 5949) da série 891 são
// emitidas só pra controle interno e não entram no estoque.
const (
	ignoredCFOP  = "5949"
	ignoredSerie = "891"
	ignoreReason = "remessa interna CFOP 5949 série 891"
)

// Caminhos conhecidos até o infNFe, do mais comum pro mais raro: nota
// processada (nfeProc>NFe>infNFe), NFe solta, e lote de envio.
var infNFePaths = [][]string{
	{"NFe", "infNFe"},
	{"infNFe"},
	{"enviNFe", "NFe", "infNFe"},
}

var protNFePaths = [][]string{
	{"protNFe", "infProt"},
	{"nfeProc", "protNFe", "infProt"},
	{"retConsSitNFe", "protNFe", "infProt"},
}

// extractInvoice extrai a NF-e completa a partir da raiz da árvore.
// Qualquer erro interno que não seja ParseError é envolvido em
// LAYOUT_UNSUPPORTED pra manter a taxonomia única.
func extractInvoice(root *etree.Element) (*ParsedInvoice, error) {
	inv, err := extractInvoiceInner(root)
	if err != nil {
		return nil, wrapLayout(err)
	}
	return inv, nil
}

func extractInvoiceInner(root *etree.Element) (*ParsedInvoice, error) {
	inf := findFirst(root, infNFePaths)
	if inf == nil && root.Tag == "infNFe" {
		inf = root
	}
	if inf == nil {
		return nil, newParseError(CodeMissingInfNFe, "bloco infNFe não encontrado em nenhum caminho conhecido")
	}

	prot := findFirst(root, protNFePaths)

	inv := &ParsedInvoice{}

	// Chave de acesso: preferimos a do protocolo; senão cai no atributo Id
	// do infNFe, removendo o prefixo "NFe".
	chave := normalizeTaxKey(childText(prot, "chNFe"))
	if chave == "" {
		chave = normalizeTaxKey(strings.TrimPrefix(attr(inf, "Id"), "NFe"))
	}
	if chave == "" {
		return nil, newParseError(CodeMissingInfNFe, "chave de acesso ausente (sem protocolo e sem atributo Id)")
	}
	inv.Chave = chave

	ide := child(inf, "ide")

	// Emissão: dhEmi (4.00) ou dEmi (layouts antigos); obrigatória.
	emissao, perr := parseDate(firstNonEmpty(childText(ide, "dhEmi"), childText(ide, "dEmi")), "emissao")
	if perr != nil {
		return nil, perr
	}
	inv.Emissao = emissao

	// Entrada/saída é opcional.
	entradaSaida, perr := optionalDate(firstNonEmpty(childText(ide, "dhSaiEnt"), childText(ide, "dSaiEnt")), "entrada_saida")
	if perr != nil {
		return nil, perr
	}
	inv.EntradaSaida = entradaSaida

	// tpNF, quando presente, só admite 0 (entrada) ou 1 (saída).
	if tpNF := childText(ide, "tpNF"); tpNF != "" {
		if tpNF != "0" && tpNF != "1" {
			return nil, layoutErr("tpNF inválido: %q (esperado 0 ou 1)", tpNF)
		}
		inv.TpNF = tpNF
	}

	inv.NatOp = childText(ide, "natOp")
	if inv.NatOp == "" {
		return nil, layoutErr("natureza de operação (natOp) ausente")
	}

	inv.Numero = childText(ide, "nNF")
	inv.Serie = childText(ide, "serie")

	// Emitente e destinatário precisam de documento válido.
	inv.EmitenteCNPJ = normalizeTaxID(firstNonEmpty(childText(inf, "emit", "CNPJ"), childText(inf, "emit", "CPF")))
	if inv.EmitenteCNPJ == "" {
		return nil, layoutErr("CNPJ/CPF do emitente ausente ou inválido")
	}

	dest := child(inf, "dest")
	inv.DestCNPJ = normalizeTaxID(firstNonEmpty(childText(dest, "CNPJ"), childText(dest, "CPF")))
	if inv.DestCNPJ == "" {
		return nil, layoutErr("CNPJ/CPF do destinatário ausente ou inválido")
	}
	inv.DestRazao = childText(dest, "xNome")
	inv.DestMunicipio = childText(dest, "enderDest", "xMun")
	inv.DestUF = childText(dest, "enderDest", "UF")

	total, perr := normalizeDecimal(childText(inf, "total", "ICMSTot", "vNF"), "total_nfe")
	if perr != nil {
		return nil, perr
	}
	inv.TotalNFe = total

	// Itens: det vazio é falha de parse, não resultado vazio.
	dets := children(inf, "det")
	if len(dets) == 0 {
		return nil, layoutErr("nota sem itens (bloco det vazio ou ausente)")
	}
	for i, det := range dets {
		item, err := extractItem(det, i+1)
		if err != nil {
			return nil, err
		}
		inv.Itens = append(inv.Itens, *item)
	}

	// Protocolo é opcional; quando presente deriva o flag de cancelamento.
	if prot != nil {
		inv.Protocolo = &Protocolo{
			CodigoStatus: childText(prot, "cStat"),
			Motivo:       childText(prot, "xMotivo"),
			Numero:       childText(prot, "nProt"),
			RecebidoEm:   parseDateTime(childText(prot, "dhRecbto")),
		}
		inv.Cancelada = cancelledNFeStatus[inv.Protocolo.CodigoStatus]
	}

	// Regra da nota ignorada: exige as duas condições ao mesmo tempo.
	if inv.Serie == ignoredSerie {
		for _, it := range inv.Itens {
			if it.CFOP == ignoredCFOP {
				inv.Ignorada = true
				inv.MotivoIgnorar = ignoreReason
				break
			}
		}
	}

	return inv, nil
}

// extractItem extrai um det. O ordinal (1-based) entra nas mensagens de erro
// pra facilitar a triagem do operador.
func extractItem(det *etree.Element, ordinal int) (*ParsedItem, error) {
	prod := child(det, "prod")

	item := &ParsedItem{
		CFOP:      childText(prod, "CFOP"),
		NCM:       childText(prod, "NCM"),
		Codigo:    childText(prod, "cProd"),
		Descricao: childText(prod, "xProd"),
		Unidade:   childText(prod, "uCom"),
	}

	if item.CFOP == "" {
		return nil, layoutErr("item %d sem CFOP", ordinal)
	}

	var perr *ParseError
	if item.Quantidade, perr = normalizeDecimal(childText(prod, "qCom"), itemField("qCom", ordinal)); perr != nil {
		return nil, perr
	}
	if item.ValorUnitario, perr = normalizeDecimal(childText(prod, "vUnCom"), itemField("vUnCom", ordinal)); perr != nil {
		return nil, perr
	}
	if item.ValorBruto, perr = normalizeDecimal(childText(prod, "vProd"), itemField("vProd", ordinal)); perr != nil {
		return nil, perr
	}
	// Desconto ausente significa zero.
	if item.ValorDesconto, perr = decimalOrDefault(childText(prod, "vDesc"), itemField("vDesc", ordinal), "0"); perr != nil {
		return nil, perr
	}

	imposto := child(det, "imposto")
	extractICMS(child(imposto, "ICMS"), item)
	item.ValorIPI = childText(imposto, "IPI", "IPITrib", "vIPI")
	item.ValorPIS = firstVariantValue(child(imposto, "PIS"), pisVariants, "vPIS")
	item.ValorCOFINS = firstVariantValue(child(imposto, "COFINS"), cofinsVariants, "vCOFINS")

	// Impostos são opcionais, mas quando presentes também passam pela forma
	// canônica (ausência vira vazio, lixo continua sendo erro).
	taxFields := []struct {
		val  *string
		name string
	}{
		{&item.BaseICMS, "vBC"},
		{&item.ValorICMS, "vICMS"},
		{&item.DeducaoICMS, "vICMSDeson"},
		{&item.BaseICMSST, "vBCST"},
		{&item.ValorICMSST, "vICMSST"},
		{&item.ValorIPI, "vIPI"},
		{&item.ValorPIS, "vPIS"},
		{&item.ValorCOFINS, "vCOFINS"},
	}
	for _, f := range taxFields {
		if *f.val, perr = optionalDecimal(*f.val, itemField(f.name, ordinal)); perr != nil {
			return nil, perr
		}
	}

	return item, nil
}

func itemField(name string, ordinal int) string {
	return fmt.Sprintf("%s (item %d)", name, ordinal)
}

// ============================================================================
// Variantes de regime tributário: exatamente uma das formas aparece por item;
// vale sempre a primeira preenchida, na ordem fixa abaixo.
// ============================================================================

var icmsVariants = []string{
	"ICMS00", "ICMS10", "ICMS20", "ICMS30", "ICMS40", "ICMS51", "ICMS60",
	"ICMS70", "ICMS90", "ICMSPart",
	"ICMSSN101", "ICMSSN102", "ICMSSN201", "ICMSSN202", "ICMSSN500", "ICMSSN900",
}

var pisVariants = []string{"PISAliq", "PISQtde", "PISNT", "PISOutr"}

var cofinsVariants = []string{"COFINSAliq", "COFINSQtde", "COFINSNT", "COFINSOutr"}

// extractICMS pega a primeira variante preenchida do grupo ICMS e copia os
// campos que ela tiver. Variantes isentas (ICMS40, SN101/102) só trazem CST.
func extractICMS(grupo *etree.Element, item *ParsedItem) {
	if grupo == nil {
		return
	}
	for _, name := range icmsVariants {
		v := child(grupo, name)
		if v == nil {
			continue
		}
		item.CST = firstNonEmpty(childText(v, "CST"), childText(v, "CSOSN"))
		item.BaseICMS = childText(v, "vBC")
		item.ValorICMS = childText(v, "vICMS")
		item.DeducaoICMS = childText(v, "vICMSDeson")
		item.BaseICMSST = childText(v, "vBCST")
		item.ValorICMSST = childText(v, "vICMSST")
		return
	}
}

// firstVariantValue devolve o valor pedido da primeira variante presente
// que o tenha preenchido (PIS/COFINS).
func firstVariantValue(grupo *etree.Element, variants []string, field string) string {
	if grupo == nil {
		return ""
	}
	for _, name := range variants {
		if v := child(grupo, name); v != nil {
			if val := childText(v, field); val != "" {
				return val
			}
		}
	}
	return ""
}
