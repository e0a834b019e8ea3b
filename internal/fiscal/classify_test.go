package fiscal

import (
	"fmt"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const xmlNFSe = `<CompNfse xmlns="http://www.abrasf.org.br/nfse.xsd">
  <Nfse>
    <InfNfse>
      <Numero>42</Numero>
      <PrestadorServico><CpfCnpj><Cnpj>12345678000190</Cnpj></CpfCnpj></PrestadorServico>
    </InfNfse>
  </Nfse>
</CompNfse>`

func classifyRaw(t *testing.T, raw string) DocKind {
	t.Helper()
	root, perr := parseTree(raw)
	require.Nil(t, perr)
	kind, _ := classify(root)
	return kind
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want DocKind
	}{
		{name: "nfe processada", raw: notaMinima("1", "5102"), want: KindInvoice},
		{name: "cte processado", raw: cteMinimo(), want: KindCTe},
		{name: "nfse abrasf", raw: xmlNFSe, want: KindNFSe},
		{
			name: "raiz com marcador nfse",
			raw:  `<ConsultarNfseResposta><algo/></ConsultarNfseResposta>`,
			want: KindNFSe,
		},
		{
			name: "wrapper rps",
			raw:  `<EnviarLoteRpsEnvio><Rps><InfRps/></Rps></EnviarLoteRpsEnvio>`,
			want: KindNFSe,
		},
		{
			name: "evento de cancelamento",
			raw: fmt.Sprintf(`<procEventoNFe><evento><infEvento>
  <chNFe>%s</chNFe><tpEvento>110111</tpEvento>
</infEvento></evento></procEventoNFe>`, chaveEvento),
			want: KindCancelamento,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyRaw(t, tt.raw))
		})
	}
}

func TestClassifyNfeProcNaoEhNFSe(t *testing.T) {
	// "nfeProc" contém "nfe" mas não pode cair no balde de serviço.
	assert.Equal(t, KindInvoice, classifyRaw(t, notaMinima("1", "5102")))
}

func TestClassifyEventoDentroDeEnvelopeGenerico(t *testing.T) {
	// Evento embrulhado numa raiz que também poderia parecer envelope de
	// nota: cancelamento tem precedência sobre NF-e.
	raw := fmt.Sprintf(`<nfeProc>
  <procEventoNFe><evento><infEvento>
    <chNFe>%s</chNFe><tpEvento>110111</tpEvento>
  </infEvento></evento></procEventoNFe>
</nfeProc>`, chaveEvento)

	kind, ev := classify(mustParse(t, raw))
	assert.Equal(t, KindCancelamento, kind)
	require.NotNil(t, ev)
	assert.Equal(t, chaveEvento, ev.Chave)
}

func mustParse(t *testing.T, raw string) *etree.Element {
	t.Helper()
	root, perr := parseTree(raw)
	require.Nil(t, perr)
	return root
}
