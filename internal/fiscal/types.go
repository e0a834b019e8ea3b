package fiscal

import "time"

// ============================================================================
// Tipos de saída: registros imutáveis, um por chamada de parse
// ============================================================================

// DocKind identifica qual dos quatro tipos de documento fiscal o XML representa.
type DocKind string

const (
	KindNFSe         DocKind = "NFSE"
	KindCTe          DocKind = "CTE"
	KindCancelamento DocKind = "CANCELLATION"
	KindInvoice      DocKind = "INVOICE"
)

// Protocolo é o bloco de autorização da SEFAZ anexado a documentos processados.
type Protocolo struct {
	CodigoStatus string
	Motivo       string
	Numero       string
	RecebidoEm   *time.Time
}

// ParsedInvoice é a NF-e normalizada, pronta pra persistência e valoração.
// Campos decimais são strings canônicas no formato [-+]?\d+(\.\d+)?.
type ParsedInvoice struct {
	Chave        string // chave de acesso, 44 dígitos
	Emissao      time.Time
	EntradaSaida *time.Time
	TpNF         string // "0" entrada, "1" saída; vazio quando ausente
	NatOp        string

	EmitenteCNPJ  string
	DestCNPJ      string
	DestRazao     string
	DestMunicipio string
	DestUF        string

	TotalNFe string
	Numero   string
	Serie    string

	Itens []ParsedItem

	Protocolo *Protocolo
	Cancelada bool

	// Regra de negócio: notas com CFOP bloqueado + série bloqueada são ignoradas.
	Ignorada      bool
	MotivoIgnorar string
}

// ParsedItem é um item (det) da NF-e. Campos de imposto são opcionais e
// ficam vazios quando a variante de regime não os traz.
type ParsedItem struct {
	CFOP      string // obrigatório, 4 dígitos
	NCM       string
	CST       string // CST ou CSOSN, conforme a variante de ICMS
	Codigo    string
	Descricao string
	Unidade   string

	Quantidade    string
	ValorUnitario string
	ValorBruto    string
	ValorDesconto string

	BaseICMS    string
	ValorICMS   string
	DeducaoICMS string
	BaseICMSST  string
	ValorICMSST string
	ValorIPI    string
	ValorPIS    string
	ValorCOFINS string
}

// ParsedCTe é o conhecimento de transporte normalizado, paralelo à ParsedInvoice.
type ParsedCTe struct {
	Chave   string
	Emissao time.Time
	Numero  string
	Serie   string
	CFOP    string
	NatOp   string

	EmitenteCNPJ      string
	EmitenteRazao     string
	EmitenteMunicipio string
	EmitenteUF        string

	DestCNPJ      string
	DestRazao     string
	DestMunicipio string
	DestUF        string

	ValorPrestacao string // obrigatório
	ValorReceber   string

	PesoCarga   string
	UnidadePeso string

	Protocolo *Protocolo
	Cancelada bool
}

// EventoCancelamento é um evento administrativo (cancelamento/correção)
// referenciando uma chave de acesso existente.
type EventoCancelamento struct {
	Chave           string
	TipoEvento      string
	Sequencia       string
	CodigoStatus    string
	Motivo          string
	NumeroProtocolo string
	DataEvento      *time.Time
	RecebidoEm      *time.Time
	Justificativa   string
	Aprovado        bool
}

// ParseResult é a união etiquetada devolvida por ParseUploadXML.
// Exatamente um dos ponteiros é não-nil, conforme Kind (NFSE não carrega dado).
type ParseResult struct {
	Kind         DocKind
	Invoice      *ParsedInvoice
	CTe          *ParsedCTe
	Cancelamento *EventoCancelamento
}
